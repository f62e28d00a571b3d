package engine

import (
	"strings"

	"f2phelper/dom"
	"f2phelper/internal/prefs"
)

// IconType names the icon variant; it is also the prefix of the marker's
// CSS class ("members-icon", "F2P-icon").
type IconType string

const (
	IconMembers IconType = "members"
	IconF2P     IconType = "F2P"
)

// IconState is the (type, position) pair of a title icon marker.
type IconState struct {
	Type     IconType
	Position prefs.Position
}

// TitleStyle is the inline styling the engine manages on the heading.
type TitleStyle struct {
	Strikethrough bool
	Uppercase     bool
	Color         string
}

// DesiredState is what the managed regions should look like for one
// classification and preference set.
type DesiredState struct {
	Class Classification
	// Icon is nil when no title icon should exist.
	Icon *IconState
	// Style is nil when the heading's inline style must be left alone.
	Style *TitleStyle
}

// Desire derives the desired state. It touches neither the DOM nor storage.
func Desire(class Classification, st prefs.Settings) DesiredState {
	want := DesiredState{Class: class}
	if class == Unknown {
		return want
	}
	if st.IconEnabled {
		icon := IconState{Type: IconMembers, Position: st.IconPosition}
		if class == FreeToPlay {
			icon.Type = IconF2P
		}
		want.Icon = &icon
	}
	style := TitleStyle{}
	switch class {
	case Members:
		if st.StyleEnabled {
			style.Strikethrough = st.Strikethrough
			style.Uppercase = st.Uppercase
		}
		if st.ColorEnabled {
			style.Color = st.ColorMembers
		}
	case FreeToPlay:
		if st.ColorEnabled {
			style.Color = st.ColorF2P
		}
	}
	want.Style = &style
	return want
}

// ObservedState is what the engine finds in the DOM before acting.
type ObservedState struct {
	Heading      bool
	Icons        []IconState
	Style        TitleStyle
	MenuIcon     bool
	MenuTemplate bool
	Popup        bool
	Body         bool
}

// Observe reads the current augmentation markers from the document.
func Observe(doc *dom.Document) ObservedState {
	obs := ObservedState{
		MenuIcon:     doc.ByID(menuIconID) != nil,
		MenuTemplate: doc.ByID(menuTemplateID) != nil,
		Popup:        doc.ByID(popupID) != nil,
		Body:         doc.Body() != nil,
	}
	for _, n := range doc.QueryAll("#" + titleIconID) {
		obs.Icons = append(obs.Icons, iconStateOf(dom.Classes(n)))
	}
	if h := doc.Query(headingSelector); h != nil {
		obs.Heading = true
		obs.Style = TitleStyle{
			Strikethrough: strings.Contains(strings.ToLower(dom.StyleValue(h, "text-decoration")), "line-through"),
			Uppercase:     strings.EqualFold(dom.StyleValue(h, "text-transform"), "uppercase"),
			Color:         strings.ToLower(dom.StyleValue(h, "color")),
		}
	}
	return obs
}

func iconStateOf(classes []string) IconState {
	var st IconState
	for _, c := range classes {
		switch c {
		case string(IconMembers) + "-icon":
			st.Type = IconMembers
		case string(IconF2P) + "-icon":
			st.Type = IconF2P
		case string(prefs.PositionBefore):
			st.Position = prefs.PositionBefore
		case string(prefs.PositionAfter):
			st.Position = prefs.PositionAfter
		}
	}
	return st
}

// ActionKind enumerates the DOM writes the engine can perform.
type ActionKind int

const (
	RemoveIcon ActionKind = iota + 1
	InsertIcon
	SetTitleStyle
	InsertPopup
	InsertMenuIcon
)

func (k ActionKind) String() string {
	switch k {
	case RemoveIcon:
		return "remove-icon"
	case InsertIcon:
		return "insert-icon"
	case SetTitleStyle:
		return "set-title-style"
	case InsertPopup:
		return "insert-popup"
	case InsertMenuIcon:
		return "insert-menu-icon"
	default:
		return "unknown"
	}
}

// Action is one planned DOM write.
type Action struct {
	Kind  ActionKind
	Icon  IconState
	Style TitleStyle
}

// Plan diffs observed against desired and returns the minimal list of
// writes, in the order they must be applied. An empty plan means the DOM is
// at its fixed point.
func Plan(obs ObservedState, want DesiredState) []Action {
	var plan []Action

	switch {
	case want.Icon == nil || !obs.Heading:
		if len(obs.Icons) > 0 {
			plan = append(plan, Action{Kind: RemoveIcon})
		}
	case len(obs.Icons) == 1 && obs.Icons[0] == *want.Icon:
		// present and correct
	default:
		if len(obs.Icons) > 0 {
			plan = append(plan, Action{Kind: RemoveIcon})
		}
		plan = append(plan, Action{Kind: InsertIcon, Icon: *want.Icon})
	}

	if want.Style != nil && obs.Heading && !sameStyle(obs.Style, *want.Style) {
		plan = append(plan, Action{Kind: SetTitleStyle, Style: *want.Style})
	}

	if !obs.Popup && obs.Body {
		plan = append(plan, Action{Kind: InsertPopup})
	}
	if !obs.MenuIcon && obs.MenuTemplate {
		plan = append(plan, Action{Kind: InsertMenuIcon})
	}
	return plan
}

func sameStyle(a, b TitleStyle) bool {
	return a.Strikethrough == b.Strikethrough &&
		a.Uppercase == b.Uppercase &&
		strings.EqualFold(a.Color, b.Color)
}
