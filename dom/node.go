package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attrs builds an attribute list from key/value pairs. A trailing key
// without a value is dropped.
func Attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

// El creates a detached element.
func El(tag string, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     append([]html.Attribute(nil), attrs...),
	}
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

// Text creates a detached text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Attr returns the value of the named attribute or "".
func Attr(n *html.Node, key string) string {
	v, _ := LookupAttr(n, key)
	return v
}

// LookupAttr returns the attribute value and whether it is present.
func LookupAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present.
func HasAttr(n *html.Node, key string) bool {
	_, ok := LookupAttr(n, key)
	return ok
}

// ID returns the id attribute.
func ID(n *html.Node) string { return Attr(n, "id") }

// Classes splits the class attribute.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n carries the class name.
func HasClass(n *html.Node, name string) bool {
	for _, c := range Classes(n) {
		if c == name {
			return true
		}
	}
	return false
}

// TextContent concatenates all descendant text.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// Contains reports whether other is n or one of its descendants.
func Contains(n, other *html.Node) bool {
	if n == nil {
		return false
	}
	for c := other; c != nil; c = c.Parent {
		if c == n {
			return true
		}
	}
	return false
}

// IsWhitespace reports whether n is a text node holding only whitespace.
func IsWhitespace(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// Clone deep-copies n. The copy is detached and carries no listeners.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	cp := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(Clone(c))
	}
	return cp
}

// Checked reports whether an input carries the checked attribute.
func Checked(n *html.Node) bool { return HasAttr(n, "checked") }

// Value returns the value attribute of a form control.
func Value(n *html.Node) string { return Attr(n, "value") }
