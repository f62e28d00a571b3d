package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Compile parses a selector group.
func Compile(sel string) (cascadia.SelectorGroup, error) {
	return cascadia.ParseGroup(sel)
}

// Query returns the first descendant of the document matching sel, or nil
// when nothing matches or the selector does not parse.
func (d *Document) Query(sel string) *html.Node {
	return QueryIn(d.root, sel)
}

// QueryAll returns every descendant of the document matching sel.
func (d *Document) QueryAll(sel string) []*html.Node {
	return QueryAllIn(d.root, sel)
}

// ByID finds the element with the given id.
func (d *Document) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && ID(n) == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// QueryIn searches the descendants of scope.
func QueryIn(scope *html.Node, sel string) *html.Node {
	m, err := Compile(sel)
	if err != nil || scope == nil {
		return nil
	}
	var found *html.Node
	for c := scope.FirstChild; c != nil && found == nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && m.Match(n) {
				found = n
				return false
			}
			return true
		})
	}
	return found
}

// QueryAllIn returns all matching descendants of scope in document order.
func QueryAllIn(scope *html.Node, sel string) []*html.Node {
	m, err := Compile(sel)
	if err != nil || scope == nil {
		return nil
	}
	var out []*html.Node
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && m.Match(n) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}
