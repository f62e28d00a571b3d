// Package engine keeps a wiki page's title annotations in sync with the
// page's membership status and the visitor's preferences.
//
// The engine owns one mutation observer on the document body. Every batch
// of child-list mutations triggers a reconcile cycle: classify the page,
// derive the desired state, diff it against the markers found in the DOM
// and apply the difference. Observation is suspended while the engine
// writes, so its own changes never schedule another cycle.
package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"f2phelper/dom"
	"f2phelper/internal/prefs"
)

// ErrNoBody is returned by Start when the document has no body to observe.
var ErrNoBody = errors.New("engine: document has no body")

const (
	titleIconID     = "f2p_helper_icon"
	menuIconID      = "pt-f2p-helper"
	menuTemplateID  = "pt-theme-toggles"
	popupID         = "wgl-f2p-helper-popup"
	popupStyleID    = "wgl-f2p-helper-style"
	headingSelector = "h1#firstHeading"

	defaultDismissDelay = 100 * time.Millisecond
)

// Options tunes an Engine.
type Options struct {
	Logger *zap.Logger
	// SettingsURL, when set, becomes the href of the menu shortcut so the
	// settings stay reachable without script.
	SettingsURL string
	// FormAction, when set, wraps the popup controls in a POST form.
	FormAction string
	// ReturnTo is posted with the form so the handler can redirect back.
	ReturnTo string
	// DismissDelay is the wait before the outside-click listener is
	// installed after opening the popup.
	DismissDelay time.Duration
}

// Stats counts engine activity.
type Stats struct {
	Cycles    int
	Actions   int
	LastClass Classification
}

// Engine reconciles one document.
type Engine struct {
	doc    *dom.Document
	store  *prefs.Store
	opts   Options
	logger *zap.Logger

	observer  *dom.Observer
	running   bool
	observing bool

	dismiss      func()
	dismissTimer dom.TimerID

	stats Stats
}

// New creates an engine for doc reading preferences from store.
func New(doc *dom.Document, store *prefs.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DismissDelay <= 0 {
		opts.DismissDelay = defaultDismissDelay
	}
	e := &Engine{doc: doc, store: store, opts: opts, logger: opts.Logger}
	e.observer = doc.NewObserver(e.onMutations)
	return e
}

var observeOptions = dom.ObserveOptions{ChildList: true, Subtree: true}

// Start begins observing the document body. It does not run a cycle by
// itself; the first child-list mutation does, or call Reconcile.
func (e *Engine) Start() error {
	body := e.doc.Body()
	if body == nil {
		return ErrNoBody
	}
	e.running = true
	e.observer.Observe(body, observeOptions)
	e.observing = true
	e.logger.Info("Starting")
	return nil
}

// Stop disconnects the observer and drops any pending dismissal listener.
func (e *Engine) Stop() {
	e.running = false
	e.observing = false
	e.observer.Disconnect()
	e.dropOutsideClick()
}

// Observing reports whether the mutation observer is connected.
func (e *Engine) Observing() bool { return e.observer.Connected() }

// Stats returns activity counters.
func (e *Engine) Stats() Stats { return e.stats }

// suspend disconnects observation and returns the func that restores it.
// Every DOM-writing path defers the returned func, so observation comes
// back on all exits. Nested calls and calls on a stopped engine return a
// no-op.
func (e *Engine) suspend() func() {
	if !e.observing {
		return func() {}
	}
	e.observer.Disconnect()
	e.observing = false
	return func() {
		if !e.running {
			return
		}
		if body := e.doc.Body(); body != nil {
			e.observer.Observe(body, observeOptions)
			e.observing = true
		}
	}
}

func (e *Engine) onMutations(records []dom.MutationRecord, _ *dom.Observer) {
	for _, rec := range records {
		if rec.Type == dom.ChildList {
			e.logger.Debug("childList mutation detected", zap.Int("records", len(records)))
			e.Reconcile()
			return
		}
	}
}

// Reconcile runs one cycle and returns the actions it applied.
func (e *Engine) Reconcile() []Action {
	release := e.suspend()
	defer release()

	e.stats.Cycles++
	class := Classify(e.doc)
	settings := prefs.Load(e.store)
	want := Desire(class, settings)
	plan := Plan(Observe(e.doc), want)
	e.stats.LastClass = class

	applied := plan[:0:0]
	for _, a := range plan {
		if e.apply(a, settings) {
			applied = append(applied, a)
		}
	}
	e.stats.Actions += len(applied)
	if len(applied) > 0 {
		e.logger.Debug("Reconciled", zap.Stringer("class", class), zap.Int("actions", len(applied)))
	}
	return applied
}

func (e *Engine) apply(a Action, settings prefs.Settings) bool {
	switch a.Kind {
	case RemoveIcon:
		return e.removeTitleIcons()
	case InsertIcon:
		return e.insertTitleIcon(a.Icon)
	case SetTitleStyle:
		return e.setTitleStyle(a.Style)
	case InsertPopup:
		return e.insertPopup(settings)
	case InsertMenuIcon:
		return e.insertMenuIcon()
	}
	return false
}
