// Package dom provides a live HTML document on top of golang.org/x/net/html.
//
// It carries the small part of the browser environment the title annotator
// depends on: selector queries, mutation observers, event listeners with
// bubbling and clock-driven timers. Everything runs on the caller's
// goroutine; callbacks are delivered serially by Flush, Dispatch and
// RunTimers.
package dom

import (
	"bytes"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree together with the observers, listeners
// and timers registered against it.
type Document struct {
	root       *html.Node
	clock      func() time.Time
	observers  []*Observer
	listeners  map[*html.Node]map[string][]*listener
	timers     []*timer
	nextTimer  TimerID
	delivering bool
	maxRounds  int
}

// Option configures a Document.
type Option func(*Document)

// WithClock replaces the clock used for timers.
func WithClock(clock func() time.Time) Option {
	return func(d *Document) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithMaxDeliveryRounds bounds how many observer rounds a single Flush runs
// before giving up with ErrMutationStorm.
func WithMaxDeliveryRounds(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.maxRounds = n
		}
	}
}

const defaultMaxDeliveryRounds = 64

// NewDocument wraps an existing tree. root is normally the DocumentNode
// returned by html.Parse.
func NewDocument(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:      root,
		clock:     time.Now,
		listeners: make(map[*html.Node]map[string][]*listener),
		maxRounds: defaultMaxDeliveryRounds,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root, opts...), nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Now reports the document clock.
func (d *Document) Now() time.Time { return d.clock() }

// Body returns the body element or nil.
func (d *Document) Body() *html.Node { return d.firstByAtom(atom.Body) }

// Head returns the head element or nil.
func (d *Document) Head() *html.Node { return d.firstByAtom(atom.Head) }

func (d *Document) firstByAtom(a atom.Atom) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document; rendering errors yield an empty string.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// OuterHTML renders a single node.
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// walk visits n and its descendants in document order until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}
