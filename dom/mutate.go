package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// AppendChild moves child to the end of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore moves child into parent before ref. A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil || child == ref {
		return
	}
	if ref != nil && ref.Parent != parent {
		return
	}
	d.detach(child)
	parent.InsertBefore(child, ref)
	d.notify(MutationRecord{Type: ChildList, Target: parent, Added: []*html.Node{child}})
}

// InsertAfter places child immediately after ref.
func (d *Document) InsertAfter(ref, child *html.Node) {
	if ref == nil || ref.Parent == nil {
		return
	}
	next := ref.NextSibling
	if next == child {
		return
	}
	d.InsertBefore(ref.Parent, child, next)
}

// Prepend moves child to the front of parent.
func (d *Document) Prepend(parent, child *html.Node) {
	if parent == nil {
		return
	}
	d.InsertBefore(parent, child, parent.FirstChild)
}

// Remove detaches n from its parent. Listeners on the detached subtree stay
// registered; a node re-inserted later keeps them, as in a browser.
func (d *Document) Remove(n *html.Node) {
	d.detach(n)
}

func (d *Document) detach(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	parent := n.Parent
	parent.RemoveChild(n)
	d.notify(MutationRecord{Type: ChildList, Target: parent, Removed: []*html.Node{n}})
}

// SetAttr sets an attribute. Setting the current value records nothing.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return
			}
			old := a.Val
			n.Attr[i].Val = val
			d.notify(MutationRecord{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.notify(MutationRecord{Type: Attributes, Target: n, AttributeName: key})
}

// RemoveAttr deletes an attribute if present.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.notify(MutationRecord{Type: Attributes, Target: n, AttributeName: key, OldValue: a.Val})
			return
		}
	}
}

// SetChecked toggles the checked attribute of an input. Checking a radio
// button unchecks the other radios sharing its name.
func (d *Document) SetChecked(n *html.Node, checked bool) {
	if !checked {
		d.RemoveAttr(n, "checked")
		return
	}
	if name := Attr(n, "name"); name != "" && strings.EqualFold(Attr(n, "type"), "radio") {
		for _, other := range d.QueryAll(`input[type="radio"]`) {
			if other != n && Attr(other, "name") == name {
				d.RemoveAttr(other, "checked")
			}
		}
	}
	d.SetAttr(n, "checked", "")
}

// SetValue sets the value attribute of a form control.
func (d *Document) SetValue(n *html.Node, v string) {
	d.SetAttr(n, "value", v)
}

// ReplaceChildren removes every child of parent and appends the given nodes.
func (d *Document) ReplaceChildren(parent *html.Node, children ...*html.Node) {
	if parent == nil {
		return
	}
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		d.detach(c)
		c = next
	}
	for _, c := range children {
		d.AppendChild(parent, c)
	}
}
