package dom

import (
	"errors"

	"golang.org/x/net/html"
)

// ErrMutationStorm is returned by Flush when observers keep producing
// records past the configured number of delivery rounds.
var ErrMutationStorm = errors.New("dom: mutation delivery did not settle")

// MutationType classifies a MutationRecord.
type MutationType int

const (
	ChildList MutationType = iota + 1
	Attributes
)

func (t MutationType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	default:
		return "unknown"
	}
}

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Type          MutationType
	Target        *html.Node
	Added         []*html.Node
	Removed       []*html.Node
	AttributeName string
	OldValue      string
}

// ObserveOptions selects which changes an observer receives.
type ObserveOptions struct {
	ChildList  bool
	Attributes bool
	Subtree    bool
}

// Callback receives the records collected since the previous delivery.
type Callback func(records []MutationRecord, o *Observer)

// Observer collects mutation records for a target and hands them to its
// callback in batches.
type Observer struct {
	doc       *Document
	callback  Callback
	target    *html.Node
	opts      ObserveOptions
	connected bool
	records   []MutationRecord
}

// NewObserver registers a disconnected observer on the document.
func (d *Document) NewObserver(cb Callback) *Observer {
	o := &Observer{doc: d, callback: cb}
	d.observers = append(d.observers, o)
	return o
}

// Observe (re)connects the observer. Records queued before the call are kept.
func (o *Observer) Observe(target *html.Node, opts ObserveOptions) {
	if target == nil {
		return
	}
	o.target = target
	o.opts = opts
	o.connected = true
}

// Disconnect stops observation and drops queued records.
func (o *Observer) Disconnect() {
	o.connected = false
	o.records = nil
}

// Connected reports whether the observer is currently observing.
func (o *Observer) Connected() bool { return o.connected }

// TakeRecords empties and returns the queue.
func (o *Observer) TakeRecords() []MutationRecord {
	recs := o.records
	o.records = nil
	return recs
}

func (o *Observer) wants(rec MutationRecord) bool {
	if !o.connected {
		return false
	}
	switch rec.Type {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case Attributes:
		if !o.opts.Attributes {
			return false
		}
	default:
		return false
	}
	if rec.Target == o.target {
		return true
	}
	return o.opts.Subtree && Contains(o.target, rec.Target)
}

func (d *Document) notify(rec MutationRecord) {
	for _, o := range d.observers {
		if o.wants(rec) {
			o.records = append(o.records, rec)
		}
	}
}

// Pending reports whether any observer has undelivered records.
func (d *Document) Pending() bool {
	for _, o := range d.observers {
		if len(o.records) > 0 {
			return true
		}
	}
	return false
}

// Flush delivers queued records until no observer has any left. It returns
// the number of callback invocations. A Flush issued from inside a callback
// is a no-op; the outer delivery loop picks up whatever the callback queued.
func (d *Document) Flush() (int, error) {
	if d.delivering {
		return 0, nil
	}
	d.delivering = true
	defer func() { d.delivering = false }()

	delivered := 0
	for round := 0; d.Pending(); round++ {
		if round >= d.maxRounds {
			return delivered, ErrMutationStorm
		}
		for _, o := range d.observers {
			recs := o.TakeRecords()
			if len(recs) == 0 || o.callback == nil {
				continue
			}
			o.callback(recs, o)
			delivered++
		}
	}
	return delivered, nil
}
