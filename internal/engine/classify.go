package engine

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"f2phelper/dom"
)

// Classification is a page's membership status.
type Classification int

const (
	Unknown Classification = iota
	Members
	FreeToPlay
)

func (c Classification) String() string {
	switch c {
	case Members:
		return "members"
	case FreeToPlay:
		return "f2p"
	default:
		return "unknown"
	}
}

// Classify reads the "Members" row of the page's infobox. Pages without an
// infobox, without the row, or with any value other than Yes/No are Unknown.
func Classify(doc *dom.Document) Classification {
	for _, table := range doc.QueryAll("table.infobox") {
		cell := membersCell(table)
		if cell == nil {
			continue
		}
		switch strings.TrimSpace(dom.TextContent(cell)) {
		case "Yes":
			return Members
		case "No":
			return FreeToPlay
		default:
			return Unknown
		}
	}
	return Unknown
}

func membersCell(table *html.Node) *html.Node {
	var row *html.Node
	if link := dom.QueryIn(table, `th a[title="Members"]`); link != nil {
		row = closest(link, atom.Tr)
	}
	if row == nil {
		for _, th := range dom.QueryAllIn(table, "th") {
			if strings.TrimSpace(dom.TextContent(th)) == "Members" {
				row = closest(th, atom.Tr)
				break
			}
		}
	}
	if row == nil {
		return nil
	}
	return dom.QueryIn(row, "td")
}

func closest(n *html.Node, a atom.Atom) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}
