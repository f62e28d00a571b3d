package engine

import (
	"fmt"
	"io"

	"f2phelper/dom"
	"f2phelper/internal/prefs"
)

// AnnotateHTML parses a page, runs one cycle over it and writes the result.
func AnnotateHTML(r io.Reader, w io.Writer, store *prefs.Store, opts Options) (Stats, []Action, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return Stats{}, nil, fmt.Errorf("parse page: %w", err)
	}
	eng := New(doc, store, opts)
	actions := eng.Reconcile()
	eng.Stop()
	if err := doc.Render(w); err != nil {
		return eng.Stats(), actions, fmt.Errorf("render page: %w", err)
	}
	return eng.Stats(), actions, nil
}
