package dom

import (
	"golang.org/x/net/html"
)

// Event is dispatched to listeners along the target's ancestor chain,
// ending with document-level listeners.
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node

	defaultPrevented bool
	stopped          bool
}

// PreventDefault marks the event's default action as cancelled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation keeps the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles an event.
type Listener func(*Event)

type listener struct {
	fn      Listener
	removed bool
}

// AddEventListener registers fn for events of type typ reaching n. A nil n
// registers on the document itself. The returned func removes the listener;
// calling it more than once is harmless.
func (d *Document) AddEventListener(n *html.Node, typ string, fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	l := &listener{fn: fn}
	byType := d.listeners[n]
	if byType == nil {
		byType = make(map[string][]*listener)
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], l)
	return func() { d.removeListener(n, typ, l) }
}

func (d *Document) removeListener(n *html.Node, typ string, l *listener) {
	if l.removed {
		return
	}
	l.removed = true
	byType := d.listeners[n]
	list := byType[typ]
	for i, cur := range list {
		if cur == l {
			byType[typ] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(byType[typ]) == 0 {
		delete(byType, typ)
	}
	if len(byType) == 0 {
		delete(d.listeners, n)
	}
}

// ListenerCount reports how many listeners of typ are registered on n
// (nil for the document).
func (d *Document) ListenerCount(n *html.Node, typ string) int {
	return len(d.listeners[n][typ])
}

// Dispatch fires an event at target and bubbles it up to the document.
func (d *Document) Dispatch(target *html.Node, typ string) *Event {
	ev := &Event{Type: typ, Target: target}
	for n := target; n != nil && !ev.stopped; n = n.Parent {
		d.invoke(n, ev)
	}
	if !ev.stopped {
		d.invoke(nil, ev)
	}
	ev.CurrentTarget = nil
	return ev
}

// Click dispatches a click event.
func (d *Document) Click(target *html.Node) *Event {
	return d.Dispatch(target, "click")
}

func (d *Document) invoke(n *html.Node, ev *Event) {
	list := d.listeners[n][ev.Type]
	if len(list) == 0 {
		return
	}
	snapshot := append([]*listener(nil), list...)
	ev.CurrentTarget = n
	for _, l := range snapshot {
		if l.removed {
			continue
		}
		l.fn(ev)
	}
}
