package engine

import (
	"fmt"

	"golang.org/x/net/html"

	"f2phelper/dom"
)

const menuIconLabel = "F2P Helper"

func menuIconStyle() string {
	return fmt.Sprintf(`background-image: url("%s"); width: 15px; min-width: 15px; height: 14px; `+
		`background-size: 14px; display: block; background-repeat: no-repeat; opacity: 1; margin-bottom: -2px;`,
		StarDataURI("#cbd9f4"))
}

// insertMenuIcon clones the theme toggle as a template for the shortcut.
func (e *Engine) insertMenuIcon() bool {
	if e.doc.ByID(menuIconID) != nil {
		return false
	}
	template := e.doc.ByID(menuTemplateID)
	if template == nil || template.Parent == nil {
		return false
	}
	icon := dom.Clone(template)
	stripIDs(icon)
	setAttr(icon, "id", menuIconID)
	link := dom.QueryIn(icon, "a")
	if link == nil {
		link = dom.El("a", nil)
		icon.AppendChild(link)
	}
	setAttr(link, "title", menuIconLabel)
	setAttr(link, "style", menuIconStyle())
	if e.opts.SettingsURL != "" {
		setAttr(link, "href", e.opts.SettingsURL)
	}
	e.doc.InsertAfter(template, icon)
	e.doc.AddEventListener(icon, "click", e.togglePopup)
	e.logger.Debug("Added menu content icon")
	return true
}

// stripIDs drops ids under n so the clone does not duplicate the template's.
func stripIDs(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			for i := 0; i < len(c.Attr); i++ {
				if c.Attr[i].Key == "id" {
					c.Attr = append(c.Attr[:i], c.Attr[i+1:]...)
					i--
				}
			}
		}
		stripIDs(c)
	}
}

// setAttr edits a node that is not attached yet, so no record is needed.
func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
