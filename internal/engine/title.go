package engine

import (
	"golang.org/x/net/html"

	"go.uber.org/zap"

	"f2phelper/dom"
	"f2phelper/internal/prefs"
)

type iconMarkup struct {
	href  string
	title string
	alt   string
	src   string
}

var iconMarkups = map[IconType]iconMarkup{
	IconMembers: {href: "/w/Members", title: "Members", alt: "Member icon.png", src: "/images/Member_icon.png?1de0c"},
	IconF2P:     {href: "/w/Free-to-play", title: "Free-to-play", alt: "Free-to-play icon.png", src: "/images/Free-to-play_icon.png?628ce"},
}

func newTitleIcon(st IconState) *html.Node {
	m := iconMarkups[st.Type]
	attrs := dom.Attrs("id", titleIconID, "class", string(st.Type)+"-icon "+string(st.Position))
	if st.Position == prefs.PositionAfter {
		attrs = append(attrs, dom.Attrs("style", "margin-left: 2px;")...)
	}
	return dom.El("span", attrs,
		dom.El("a", dom.Attrs("href", m.href, "title", m.title),
			dom.El("img", dom.Attrs(
				"alt", m.alt,
				"src", m.src,
				"decoding", "async",
				"style", "height: .8em; vertical-align: inherit;",
			)),
		),
	)
}

func (e *Engine) removeTitleIcons() bool {
	removed := false
	for _, n := range e.doc.QueryAll("#" + titleIconID) {
		parent := n.Parent
		e.doc.Remove(n)
		collapseWhitespace(e.doc, parent, nil)
		removed = true
	}
	if removed {
		e.logger.Debug("Removed title icon")
	}
	return removed
}

func (e *Engine) insertTitleIcon(st IconState) bool {
	heading := e.doc.Query(headingSelector)
	if heading == nil {
		return false
	}
	icon := newTitleIcon(st)
	if st.Position == prefs.PositionAfter {
		e.doc.AppendChild(heading, icon)
	} else {
		e.doc.Prepend(heading, icon)
	}
	collapseWhitespace(e.doc, heading, icon)
	e.logger.Info("Added icon", zap.String("type", string(st.Type)), zap.String("position", string(st.Position)))
	return true
}

// collapseWhitespace removes whitespace-only text nodes next to icon and at
// the edges of parent, so inline text styling has no stray gaps.
func collapseWhitespace(doc *dom.Document, parent, icon *html.Node) {
	if parent == nil {
		return
	}
	if icon != nil {
		for dom.IsWhitespace(icon.PrevSibling) {
			doc.Remove(icon.PrevSibling)
		}
		for dom.IsWhitespace(icon.NextSibling) {
			doc.Remove(icon.NextSibling)
		}
	}
	for dom.IsWhitespace(parent.FirstChild) {
		doc.Remove(parent.FirstChild)
	}
	for dom.IsWhitespace(parent.LastChild) {
		doc.Remove(parent.LastChild)
	}
}

func (e *Engine) setTitleStyle(want TitleStyle) bool {
	heading := e.doc.Query(headingSelector)
	if heading == nil {
		return false
	}
	current := Observe(e.doc).Style
	changed := false
	if current.Strikethrough != want.Strikethrough {
		v := ""
		if want.Strikethrough {
			v = "line-through"
		}
		changed = e.doc.SetStyle(heading, "text-decoration", v) || changed
	}
	if current.Uppercase != want.Uppercase {
		v := ""
		if want.Uppercase {
			v = "uppercase"
		}
		changed = e.doc.SetStyle(heading, "text-transform", v) || changed
	}
	if !sameStyle(TitleStyle{Color: current.Color}, TitleStyle{Color: want.Color}) {
		changed = e.doc.SetStyle(heading, "color", want.Color) || changed
	}
	if changed {
		e.logger.Debug("Styled title",
			zap.Bool("strikethrough", want.Strikethrough),
			zap.Bool("uppercase", want.Uppercase),
			zap.String("color", want.Color))
	}
	return changed
}
