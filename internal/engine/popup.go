package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"f2phelper/dom"
	"f2phelper/internal/prefs"
)

const (
	popupPanelSelector = "#" + popupID + " > div"
	popupPanelWidth    = 300
	popupPanelInset    = 178
	personalMenuID     = "p-personal"

	popupContainerStyle = "position: absolute; top: 0; right: 0; width: 100%; z-index: 100;"
	popupHeadStyle      = "display: flex; align-items: center; gap: 6px; font-weight: bold; padding: 8px 12px; border-bottom: 1px solid var(--wgl-border-color, #a2a9b1);"
	popupBodyStyle      = "padding: 8px 12px;"
	popupGroupStyle     = "margin-left: 20px;"
)

// popupCSS covers the few rules inline styles cannot express.
const popupCSS = `#wgl-f2p-helper-popup fieldset { border: none; margin: 0 0 8px; padding: 0; }
#wgl-f2p-helper-popup legend { font-weight: bold; padding: 0 0 4px; }
#wgl-f2p-helper-popup label { display: block; margin: 2px 0; }
#wgl-f2p-helper-popup input[type="color"] { vertical-align: middle; margin-right: 4px; }`

type controlKind int

const (
	checkboxControl controlKind = iota
	radioControl
	colorControl
)

type control struct {
	kind  controlKind
	key   string
	value string
	label string
}

// section is one fieldset: a master checkbox and the controls it gates.
type section struct {
	legend   string
	toggle   control
	controls []control
}

var popupSections = []section{
	{
		legend: "Title icon",
		toggle: control{checkboxControl, prefs.KeyIconEnabled, "", "Show an icon next to the page title"},
		controls: []control{
			{radioControl, prefs.KeyIconPosition, string(prefs.PositionBefore), "Before the title"},
			{radioControl, prefs.KeyIconPosition, string(prefs.PositionAfter), "After the title"},
		},
	},
	{
		legend: "Members titles",
		toggle: control{checkboxControl, prefs.KeyStyleEnabled, "", "Style members page titles"},
		controls: []control{
			{checkboxControl, prefs.KeyStrikethrough, "", "Strikethrough"},
			{checkboxControl, prefs.KeyUppercase, "", "Uppercase"},
		},
	},
	{
		legend: "Title colors",
		toggle: control{checkboxControl, prefs.KeyColorEnabled, "", "Color page titles"},
		controls: []control{
			{colorControl, prefs.KeyColorF2P, "", "Free-to-play"},
			{colorControl, prefs.KeyColorMembers, "", "Members"},
		},
	},
}

func groupID(key string) string { return "wgl-f2p-helper-group-" + key }

func controlID(c control) string {
	if c.kind == radioControl {
		return "wgl-f2p-helper-" + c.key + "-" + c.value
	}
	return "wgl-f2p-helper-" + c.key
}

func settingValue(st prefs.Settings, key string) (string, bool) {
	switch key {
	case prefs.KeyIconEnabled:
		return "", st.IconEnabled
	case prefs.KeyIconPosition:
		return string(st.IconPosition), false
	case prefs.KeyStyleEnabled:
		return "", st.StyleEnabled
	case prefs.KeyUppercase:
		return "", st.Uppercase
	case prefs.KeyStrikethrough:
		return "", st.Strikethrough
	case prefs.KeyColorEnabled:
		return "", st.ColorEnabled
	case prefs.KeyColorF2P:
		return st.ColorF2P, false
	case prefs.KeyColorMembers:
		return st.ColorMembers, false
	}
	return "", false
}

// newControl builds the label-wrapped input for c. Inputs that need a
// change listener are appended to inputs.
func (e *Engine) newControl(c control, st prefs.Settings, inputs *[]*html.Node) []*html.Node {
	value, on := settingValue(st, c.key)
	attrs := dom.Attrs("id", controlID(c), "name", c.key, "data-f2p-key", c.key)
	var out []*html.Node
	switch c.kind {
	case checkboxControl:
		if e.opts.FormAction != "" {
			out = append(out, dom.El("input", dom.Attrs("type", "hidden", "name", c.key, "value", "false")))
		}
		attrs = append(attrs, dom.Attrs("type", "checkbox", "value", "true")...)
		if on {
			attrs = append(attrs, dom.Attrs("checked", "")...)
		}
	case radioControl:
		attrs = append(attrs, dom.Attrs("type", "radio", "value", c.value)...)
		if value == c.value {
			attrs = append(attrs, dom.Attrs("checked", "")...)
		}
	case colorControl:
		attrs = append(attrs, dom.Attrs("type", "color", "value", value)...)
	}
	input := dom.El("input", attrs)
	*inputs = append(*inputs, input)
	out = append(out, dom.El("label", dom.Attrs("for", controlID(c)), input, dom.Text(" "+c.label)))
	return out
}

func (e *Engine) newSection(s section, st prefs.Settings, inputs *[]*html.Node) *html.Node {
	fs := dom.El("fieldset", nil, dom.El("legend", nil, dom.Text(s.legend)))
	for _, n := range e.newControl(s.toggle, st, inputs) {
		fs.AppendChild(n)
	}
	_, on := settingValue(st, s.toggle.key)
	style := popupGroupStyle
	if !on {
		style += " display: none;"
	}
	group := dom.El("div", dom.Attrs("id", groupID(s.toggle.key), "style", style))
	for _, c := range s.controls {
		for _, n := range e.newControl(c, st, inputs) {
			group.AppendChild(n)
		}
	}
	fs.AppendChild(group)
	return fs
}

func (e *Engine) panelStyle() string {
	return fmt.Sprintf("display: none; top: 26px; left: calc(100%% - %dpx - %dpx); position: absolute; "+
		"z-index: 1; margin-top: 9px; width: %dpx;",
		dom.OffsetWidth(e.doc.ByID(personalMenuID)), popupPanelInset, popupPanelWidth)
}

// insertPopup appends the settings popup to the body, hidden.
func (e *Engine) insertPopup(st prefs.Settings) bool {
	body := e.doc.Body()
	if body == nil || e.doc.ByID(popupID) != nil {
		return false
	}
	var inputs []*html.Node
	content := dom.El("div", dom.Attrs("class", "wgl-f2p-helper-body", "style", popupBodyStyle))
	for _, s := range popupSections {
		content.AppendChild(e.newSection(s, st, &inputs))
	}
	if e.opts.FormAction != "" {
		form := dom.El("form", dom.Attrs("method", "post", "action", e.opts.FormAction))
		if e.opts.ReturnTo != "" {
			form.AppendChild(dom.El("input", dom.Attrs("type", "hidden", "name", "return", "value", e.opts.ReturnTo)))
		}
		form.AppendChild(content)
		form.AppendChild(dom.El("button", dom.Attrs("type", "submit"), dom.Text("Save")))
		content = form
	}
	panel := dom.El("div",
		dom.Attrs("class", "oo-ui-popupWidget-popup mw-echo-ui-notificationBadgeButtonPopupWidget-popup", "style", e.panelStyle()),
		dom.El("div", dom.Attrs("class", "wgl-f2p-helper-head", "style", popupHeadStyle),
			dom.El("img", dom.Attrs("src", StarDataURI("#cbd9f4"), "alt", "", "width", "14", "height", "14")),
			dom.Text(menuIconLabel),
		),
		content,
	)
	popup := dom.El("div", dom.Attrs("id", popupID, "class", "mw-echo-ui-overlay", "style", popupContainerStyle), panel)

	e.insertPopupCSS()
	e.doc.AppendChild(body, popup)
	for _, in := range inputs {
		e.doc.AddEventListener(in, "change", e.onControlChange)
	}
	e.logger.Debug("Added settings popup", zap.Int("controls", len(inputs)))
	return true
}

func (e *Engine) insertPopupCSS() {
	if e.doc.ByID(popupStyleID) != nil {
		return
	}
	parent := e.doc.Head()
	if parent == nil {
		parent = e.doc.Body()
	}
	e.doc.AppendChild(parent, dom.El("style", dom.Attrs("id", popupStyleID), dom.Text(popupCSS)))
}

// onControlChange stores the control's new value and re-runs the cycle so
// the page reflects it straight away.
func (e *Engine) onControlChange(ev *dom.Event) {
	in := ev.CurrentTarget
	key := dom.Attr(in, "data-f2p-key")
	var raw string
	switch strings.ToLower(dom.Attr(in, "type")) {
	case "checkbox":
		raw = "false"
		if dom.Checked(in) {
			raw = "true"
		}
		if group := e.doc.ByID(groupID(key)); group != nil {
			display := "none"
			if dom.Checked(in) {
				display = ""
			}
			release := e.suspend()
			e.doc.SetStyle(group, "display", display)
			release()
		}
	case "radio":
		if !dom.Checked(in) {
			return
		}
		raw = dom.Value(in)
	default:
		raw = dom.Value(in)
	}
	if err := prefs.ApplyChange(e.store, key, raw); err != nil {
		e.logger.Warn("Rejected preference change", zap.String("key", key), zap.Error(err))
		return
	}
	e.logger.Debug("Preference changed", zap.String("key", key), zap.String("value", raw))
	e.Reconcile()
}

// PopupOpen reports whether the settings panel is showing.
func (e *Engine) PopupOpen() bool {
	panel := e.doc.Query(popupPanelSelector)
	return panel != nil && !dom.Hidden(panel)
}

// Toggle opens the settings panel when closed and closes it when open.
func (e *Engine) Toggle() {
	panel := e.doc.Query(popupPanelSelector)
	if panel == nil {
		return
	}
	release := e.suspend()
	defer release()
	if dom.Hidden(panel) {
		e.doc.SetStyle(panel, "display", "block")
		e.dropOutsideClick()
		e.dismissTimer = e.doc.SetTimeout(e.opts.DismissDelay, func() {
			e.dismissTimer = 0
			e.dismiss = e.doc.AddEventListener(nil, "click", e.closeOnOutsideClick)
		})
		return
	}
	e.doc.SetStyle(panel, "display", "none")
	e.dropOutsideClick()
}

func (e *Engine) togglePopup(ev *dom.Event) {
	ev.PreventDefault()
	e.Toggle()
}

func (e *Engine) closeOnOutsideClick(ev *dom.Event) {
	if dom.Contains(e.doc.ByID(popupID), ev.Target) || dom.Contains(e.doc.ByID(menuIconID), ev.Target) {
		return
	}
	if panel := e.doc.Query(popupPanelSelector); panel != nil {
		release := e.suspend()
		e.doc.SetStyle(panel, "display", "none")
		release()
	}
	e.dropOutsideClick()
}

// dropOutsideClick removes the dismissal listener and any timer that would
// install it.
func (e *Engine) dropOutsideClick() {
	if e.dismissTimer != 0 {
		e.doc.ClearTimeout(e.dismissTimer)
		e.dismissTimer = 0
	}
	if e.dismiss != nil {
		e.dismiss()
		e.dismiss = nil
	}
}
