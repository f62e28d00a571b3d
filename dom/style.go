package dom

import (
	"strconv"
	"strings"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Declarations parses the inline style of n. Unparseable styles yield nil.
func Declarations(n *html.Node) []*cssast.Declaration {
	raw := strings.TrimSpace(Attr(n, "style"))
	if raw == "" {
		return nil
	}
	// douceur drops the value of an unterminated last declaration.
	if !strings.HasSuffix(raw, ";") {
		raw += ";"
	}
	decls, err := parser.ParseDeclarations(raw)
	if err != nil {
		return nil
	}
	return decls
}

// StyleValue returns the inline value of prop, or "".
func StyleValue(n *html.Node, prop string) string {
	prop = strings.ToLower(strings.TrimSpace(prop))
	val := ""
	for _, decl := range Declarations(n) {
		if decl == nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(decl.Property)) == prop {
			val = strings.TrimSpace(decl.Value)
		}
	}
	return val
}

// SetStyle sets one inline property; an empty value removes it. It reports
// whether the style attribute changed.
func (d *Document) SetStyle(n *html.Node, prop, value string) bool {
	if n == nil {
		return false
	}
	prop = strings.ToLower(strings.TrimSpace(prop))
	value = strings.TrimSpace(value)
	decls := Declarations(n)
	out := make([]*cssast.Declaration, 0, len(decls)+1)
	replaced := false
	for _, decl := range decls {
		if decl == nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(decl.Property)) != prop {
			out = append(out, decl)
			continue
		}
		if value != "" && !replaced {
			out = append(out, &cssast.Declaration{Property: prop, Value: value})
			replaced = true
		}
	}
	if value != "" && !replaced {
		out = append(out, &cssast.Declaration{Property: prop, Value: value})
	}
	return d.SetStyleText(n, FormatDeclarations(out))
}

// SetStyleText replaces the whole inline style. An empty text removes the
// attribute. It reports whether anything changed.
func (d *Document) SetStyleText(n *html.Node, text string) bool {
	text = strings.TrimSpace(text)
	old, had := LookupAttr(n, "style")
	if text == "" {
		if !had {
			return false
		}
		d.RemoveAttr(n, "style")
		return true
	}
	if had && old == text {
		return false
	}
	d.SetAttr(n, "style", text)
	return true
}

// FormatDeclarations serializes declarations as an inline style.
func FormatDeclarations(decls []*cssast.Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, decl := range decls {
		if decl == nil || strings.TrimSpace(decl.Property) == "" {
			continue
		}
		s := strings.TrimSpace(decl.Property) + ": " + strings.TrimSpace(decl.Value)
		if decl.Important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	return strings.Join(parts, " ")
}

// Hidden reports whether n is hidden through an inline display: none.
func Hidden(n *html.Node) bool {
	return strings.EqualFold(StyleValue(n, "display"), "none")
}

// OffsetWidth approximates an element's rendered width from its inline
// width in pixels. There is no layout engine, so anything else is 0.
func OffsetWidth(n *html.Node) int {
	w := strings.ToLower(StyleValue(n, "width"))
	if !strings.HasSuffix(w, "px") {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(w, "px")), 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}
