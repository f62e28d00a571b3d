package engine

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"f2phelper/dom"
	"f2phelper/internal/prefs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func page(members string) string {
	row := ""
	if members != "-" {
		row = `<tr><th><a href="/w/Members" title="Members">Members</a></th><td>` + members + `</td></tr>`
	}
	return `<!DOCTYPE html><html><head><title>t</title></head><body>
<div id="p-personal" style="width: 240px;"><ul>
<li id="pt-theme-toggles"><a id="theme-link" href="#">Theme</a></li>
</ul></div>
<h1 id="firstHeading">
<span class="mw-page-title-main">Abyssal whip</span>
</h1>
<table class="infobox"><tbody><tr><th>Released</th><td>2005</td></tr>` + row + `</tbody></table>
<div id="footer">footer</div>
</body></html>`
}

type fixture struct {
	doc   *dom.Document
	mem   *prefs.Memory
	store *prefs.Store
	eng   *Engine
	now   time.Time
}

func newFixture(t *testing.T, src string, opts Options) *fixture {
	t.Helper()
	f := &fixture{mem: prefs.NewMemory(), now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	doc, err := dom.ParseString(src, dom.WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	f.doc = doc
	f.store = prefs.NewStore(f.mem)
	f.eng = New(doc, f.store, opts)
	return f
}

func (f *fixture) advance(d time.Duration) int {
	f.now = f.now.Add(d)
	return f.doc.RunTimers()
}

func (f *fixture) heading() string {
	return dom.Attr(f.doc.Query(headingSelector), "style")
}

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		value string
		want  Classification
	}{
		{"members", "Yes", Members},
		{"free", "No", FreeToPlay},
		{"padded", "  Yes\n", Members},
		{"empty", "", Unknown},
		{"other", "Varies", Unknown},
		{"absent", "-", Unknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := dom.ParseString(page(tc.value))
			if err != nil {
				t.Fatalf("ParseString: %v", err)
			}
			if got := Classify(doc); got != tc.want {
				t.Fatalf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyPlainHeaderCell(t *testing.T) {
	t.Parallel()
	doc, err := dom.ParseString(`<html><body><table class="infobox"><tr><th> Members </th><td>No</td></tr></table></body></html>`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if got := Classify(doc); got != FreeToPlay {
		t.Fatalf("Classify = %v, want f2p", got)
	}
}

func TestDesire(t *testing.T) {
	t.Parallel()
	custom := prefs.Defaults
	custom.Uppercase = true
	custom.StyleEnabled = false
	custom.IconPosition = prefs.PositionAfter

	off := prefs.Defaults
	off.IconEnabled = false
	off.ColorEnabled = false

	cases := []struct {
		name  string
		class Classification
		st    prefs.Settings
		want  DesiredState
	}{
		{
			name:  "unknown leaves everything alone",
			class: Unknown,
			st:    prefs.Defaults,
			want:  DesiredState{Class: Unknown},
		},
		{
			name:  "members defaults",
			class: Members,
			st:    prefs.Defaults,
			want: DesiredState{
				Class: Members,
				Icon:  &IconState{Type: IconMembers, Position: prefs.PositionBefore},
				Style: &TitleStyle{Strikethrough: true, Color: "#ae2a5b"},
			},
		},
		{
			name:  "members without style",
			class: Members,
			st:    custom,
			want: DesiredState{
				Class: Members,
				Icon:  &IconState{Type: IconMembers, Position: prefs.PositionAfter},
				Style: &TitleStyle{Color: "#ae2a5b"},
			},
		},
		{
			name:  "f2p never strikes",
			class: FreeToPlay,
			st:    prefs.Defaults,
			want: DesiredState{
				Class: FreeToPlay,
				Icon:  &IconState{Type: IconF2P, Position: prefs.PositionBefore},
				Style: &TitleStyle{Color: "#439339"},
			},
		},
		{
			name:  "f2p with icon and color off",
			class: FreeToPlay,
			st:    off,
			want:  DesiredState{Class: FreeToPlay, Style: &TitleStyle{}},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tc.want, Desire(tc.class, tc.st)); diff != "" {
				t.Fatalf("Desire mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()
	before := IconState{Type: IconMembers, Position: prefs.PositionBefore}
	after := IconState{Type: IconMembers, Position: prefs.PositionAfter}
	cases := []struct {
		name string
		obs  ObservedState
		want DesiredState
		plan []ActionKind
	}{
		{
			name: "fixed point",
			obs:  ObservedState{Heading: true, Icons: []IconState{before}, Style: TitleStyle{Strikethrough: true}, Popup: true, Body: true},
			want: DesiredState{Icon: &before, Style: &TitleStyle{Strikethrough: true}},
			plan: []ActionKind{},
		},
		{
			name: "fresh page",
			obs:  ObservedState{Heading: true, Body: true, MenuTemplate: true},
			want: DesiredState{Icon: &before, Style: &TitleStyle{Strikethrough: true}},
			plan: []ActionKind{InsertIcon, SetTitleStyle, InsertPopup, InsertMenuIcon},
		},
		{
			name: "stale position",
			obs:  ObservedState{Heading: true, Icons: []IconState{before}, Popup: true, Body: true},
			want: DesiredState{Icon: &after, Style: &TitleStyle{}},
			plan: []ActionKind{RemoveIcon, InsertIcon},
		},
		{
			name: "duplicates collapse to one",
			obs:  ObservedState{Heading: true, Icons: []IconState{before, before}, Popup: true, Body: true},
			want: DesiredState{Icon: &before, Style: &TitleStyle{}},
			plan: []ActionKind{RemoveIcon, InsertIcon},
		},
		{
			name: "icon disabled",
			obs:  ObservedState{Heading: true, Icons: []IconState{before}, Popup: true, Body: true},
			want: DesiredState{Style: &TitleStyle{}},
			plan: []ActionKind{RemoveIcon},
		},
		{
			name: "no heading",
			obs:  ObservedState{Popup: true, Body: true},
			want: DesiredState{Icon: &before, Style: &TitleStyle{Color: "#ae2a5b"}},
			plan: []ActionKind{},
		},
		{
			name: "color case is ignored",
			obs:  ObservedState{Heading: true, Style: TitleStyle{Color: "#AE2A5B"}, Popup: true, Body: true},
			want: DesiredState{Style: &TitleStyle{Color: "#ae2a5b"}},
			plan: []ActionKind{},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tc.plan, kinds(Plan(tc.obs, tc.want))); diff != "" {
				t.Fatalf("Plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconcileMembersPage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	got := kinds(f.eng.Reconcile())
	want := []ActionKind{InsertIcon, SetTitleStyle, InsertPopup, InsertMenuIcon}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	icon := f.doc.ByID(titleIconID)
	if icon == nil || !dom.HasClass(icon, "members-icon") || !dom.HasClass(icon, "before") {
		t.Fatalf("icon = %s", dom.OuterHTML(icon))
	}
	if h := f.doc.Query(headingSelector); h.FirstChild != icon {
		t.Fatal("icon should be the heading's first child")
	}
	if got := f.heading(); got != "text-decoration: line-through; color: #ae2a5b;" {
		t.Fatalf("heading style = %q", got)
	}
	if f.eng.Stats().LastClass != Members {
		t.Fatalf("LastClass = %v", f.eng.Stats().LastClass)
	}
}

func TestReconcileFreeToPlayAfter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("No"), Options{})
	if err := f.store.SetString(prefs.KeyIconPosition, "after"); err != nil {
		t.Fatal(err)
	}
	f.eng.Reconcile()
	icon := f.doc.ByID(titleIconID)
	if icon == nil || !dom.HasClass(icon, "F2P-icon") {
		t.Fatalf("icon = %s", dom.OuterHTML(icon))
	}
	if h := f.doc.Query(headingSelector); h.LastChild != icon {
		t.Fatal("icon should be the heading's last child")
	}
	if got := dom.StyleValue(icon, "margin-left"); got != "2px" {
		t.Fatalf("margin-left = %q", got)
	}
	if got := f.heading(); got != "color: #439339;" {
		t.Fatalf("heading style = %q", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	f.eng.Reconcile()
	first := f.doc.String()
	if actions := f.eng.Reconcile(); len(actions) != 0 {
		t.Fatalf("second cycle applied %v", kinds(actions))
	}
	if second := f.doc.String(); second != first {
		t.Fatalf("document changed on second cycle:\n%s\n---\n%s", first, second)
	}
}

func TestUnknownPageLeavesHeadingAlone(t *testing.T) {
	t.Parallel()
	f := newFixture(t, strings.Replace(page("-"), `<h1 id="firstHeading">`, `<h1 id="firstHeading" style="color: red;">`, 1), Options{})
	f.eng.Reconcile()
	if f.doc.ByID(titleIconID) != nil {
		t.Fatal("unknown page got an icon")
	}
	if got := f.heading(); got != "color: red;" {
		t.Fatalf("heading style = %q", got)
	}
	if f.doc.ByID(popupID) == nil || f.doc.ByID(menuIconID) == nil {
		t.Fatal("popup and menu icon are page independent")
	}
}

func TestSiteHeadingStyleSurvives(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		members string
		style   string
		want    string
	}{
		{"members", "Yes", "font-family: Georgia", "font-family: Georgia; text-decoration: line-through; color: #ae2a5b;"},
		{"members_two_decls", "Yes", "font-family: Georgia; margin: 0", "font-family: Georgia; margin: 0; text-decoration: line-through; color: #ae2a5b;"},
		{"f2p", "No", "font-family: Georgia", "font-family: Georgia; color: #439339;"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			src := strings.Replace(page(tc.members), `<h1 id="firstHeading">`, `<h1 id="firstHeading" style="`+tc.style+`">`, 1)
			f := newFixture(t, src, Options{})
			f.eng.Reconcile()
			if got := f.heading(); got != tc.want {
				t.Fatalf("heading style = %q, want %q", got, tc.want)
			}
			first := f.doc.String()
			if actions := f.eng.Reconcile(); len(actions) != 0 {
				t.Fatalf("second cycle actions = %v", kinds(actions))
			}
			if f.doc.String() != first {
				t.Fatal("second cycle changed the document")
			}
		})
	}
}

func TestStaleMarkerRepaired(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	f.eng.Reconcile()
	if err := f.store.SetString(prefs.KeyIconPosition, "after"); err != nil {
		t.Fatal(err)
	}
	got := kinds(f.eng.Reconcile())
	if diff := cmp.Diff([]ActionKind{RemoveIcon, InsertIcon}, got); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	icons := f.doc.QueryAll("#" + titleIconID)
	if len(icons) != 1 || !dom.HasClass(icons[0], "after") {
		t.Fatalf("icons = %d", len(icons))
	}
}

func TestObserverDoesNotReenter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	if err := f.eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.eng.Stop()

	f.doc.AppendChild(f.doc.ByID("footer"), dom.El("span", nil, dom.Text("late content")))
	rounds, err := f.doc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if rounds != 1 {
		t.Fatalf("delivery rounds = %d, want 1", rounds)
	}
	if got := f.eng.Stats().Cycles; got != 1 {
		t.Fatalf("cycles = %d, want 1", got)
	}
	if !f.eng.Observing() {
		t.Fatal("observation was not restored")
	}

	// Re-rendering the heading brings the icon back.
	h := f.doc.Query(headingSelector)
	f.doc.ReplaceChildren(h, dom.Text("Abyssal whip"))
	if _, err := f.doc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if f.doc.ByID(titleIconID) == nil {
		t.Fatal("icon not restored")
	}
	if got := f.eng.Stats().Cycles; got != 2 {
		t.Fatalf("cycles = %d, want 2", got)
	}
}

func TestStartWithoutBody(t *testing.T) {
	t.Parallel()
	doc := dom.NewDocument(dom.El("html", nil))
	eng := New(doc, prefs.NewStore(prefs.NewMemory()), Options{})
	if err := eng.Start(); err != ErrNoBody {
		t.Fatalf("Start = %v, want ErrNoBody", err)
	}
}

func TestWhitespaceAroundIconCollapsed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	f.eng.Reconcile()
	h := f.doc.Query(headingSelector)
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsWhitespace(c) {
			t.Fatalf("whitespace left in heading: %s", dom.OuterHTML(h))
		}
	}
}

func TestMenuIcon(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{SettingsURL: "/_f2p/settings"})
	f.eng.Reconcile()
	icon := f.doc.ByID(menuIconID)
	if icon == nil {
		t.Fatal("menu icon missing")
	}
	if prev := icon.PrevSibling; prev == nil || dom.ID(prev) != menuTemplateID {
		t.Fatal("menu icon should follow the theme toggle")
	}
	if f.doc.ByID("theme-link") == nil || len(f.doc.QueryAll("#theme-link")) != 1 {
		t.Fatal("template ids were duplicated")
	}
	link := dom.QueryIn(icon, "a")
	if got := dom.Attr(link, "title"); got != menuIconLabel {
		t.Fatalf("title = %q", got)
	}
	if got := dom.Attr(link, "href"); got != "/_f2p/settings" {
		t.Fatalf("href = %q", got)
	}
	if !strings.HasPrefix(dom.StyleValue(link, "background-image"), `url("data:image/svg+xml,`) {
		t.Fatalf("style = %q", dom.Attr(link, "style"))
	}
}

func TestPopupToggleAndDismiss(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	f.eng.Reconcile()
	link := dom.QueryIn(f.doc.ByID(menuIconID), "a")

	panel := f.doc.Query(popupPanelSelector)
	if got := dom.StyleValue(panel, "left"); got != "calc(100% - 240px - 178px)" {
		t.Fatalf("left = %q", got)
	}
	if f.eng.PopupOpen() {
		t.Fatal("popup starts hidden")
	}

	ev := f.doc.Click(link)
	if !ev.DefaultPrevented() {
		t.Fatal("menu click should not navigate")
	}
	if !f.eng.PopupOpen() {
		t.Fatal("popup did not open")
	}
	if n := f.doc.ListenerCount(nil, "click"); n != 0 {
		t.Fatalf("outside listener installed early: %d", n)
	}
	// Too early: the opening click itself must not dismiss.
	if fired := f.advance(50 * time.Millisecond); fired != 0 {
		t.Fatalf("timers fired early: %d", fired)
	}
	f.doc.Click(f.doc.ByID("footer"))
	if !f.eng.PopupOpen() {
		t.Fatal("dismissed before the listener was installed")
	}
	if fired := f.advance(50 * time.Millisecond); fired != 1 {
		t.Fatalf("timers fired = %d, want 1", fired)
	}
	if n := f.doc.ListenerCount(nil, "click"); n != 1 {
		t.Fatalf("outside listeners = %d, want 1", n)
	}

	f.doc.Click(f.doc.Query(`#` + popupID + ` legend`))
	if !f.eng.PopupOpen() {
		t.Fatal("click inside closed the popup")
	}
	f.doc.Click(f.doc.ByID("footer"))
	if f.eng.PopupOpen() {
		t.Fatal("outside click did not close the popup")
	}
	if n := f.doc.ListenerCount(nil, "click"); n != 0 {
		t.Fatalf("outside listener not removed: %d", n)
	}
}

func TestPopupToggleClosesAndDeregisters(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{DismissDelay: 10 * time.Millisecond})
	f.eng.Reconcile()

	f.eng.Toggle()
	f.advance(10 * time.Millisecond)
	f.eng.Toggle()
	if f.eng.PopupOpen() {
		t.Fatal("second toggle should close")
	}
	if n := f.doc.ListenerCount(nil, "click"); n != 0 {
		t.Fatalf("outside listeners = %d", n)
	}

	// Closing before the delay elapses cancels the pending install.
	f.eng.Toggle()
	f.eng.Toggle()
	if n := f.doc.PendingTimers(); n != 0 {
		t.Fatalf("pending timers = %d", n)
	}
	f.eng.Toggle()
	f.eng.Stop()
	if n := f.doc.PendingTimers(); n != 0 {
		t.Fatalf("pending timers after Stop = %d", n)
	}
}

func TestPopupReflectsSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{FormAction: "/_f2p/prefs"})
	if err := f.store.SetBool(prefs.KeyColorEnabled, false); err != nil {
		t.Fatal(err)
	}
	f.eng.Reconcile()

	if !dom.Checked(f.doc.ByID("wgl-f2p-helper-icon-enabled")) {
		t.Fatal("icon checkbox should be checked")
	}
	if !dom.Checked(f.doc.ByID("wgl-f2p-helper-icon-position-before")) {
		t.Fatal("before radio should be checked")
	}
	if dom.Checked(f.doc.ByID("wgl-f2p-helper-icon-position-after")) {
		t.Fatal("after radio should not be checked")
	}
	if !dom.Hidden(f.doc.ByID(groupID(prefs.KeyColorEnabled))) {
		t.Fatal("color group should be hidden while disabled")
	}
	if got := dom.Value(f.doc.ByID("wgl-f2p-helper-color-members")); got != "#ae2a5b" {
		t.Fatalf("members color = %q", got)
	}
	form := f.doc.Query("#" + popupID + " form")
	if form == nil || dom.Attr(form, "action") != "/_f2p/prefs" {
		t.Fatal("form missing")
	}
	if got := len(dom.QueryAllIn(form, `input[type="hidden"][value="false"]`)); got != 5 {
		t.Fatalf("hidden false inputs = %d, want 5", got)
	}
	if f.doc.ByID(popupStyleID) == nil || f.doc.ByID(popupStyleID).Parent != f.doc.Head() {
		t.Fatal("popup stylesheet should live in head")
	}
}

func TestControlChangesApplyImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	f.eng.Reconcile()

	upper := f.doc.ByID("wgl-f2p-helper-style-uppercase")
	f.doc.SetChecked(upper, true)
	f.doc.Dispatch(upper, "change")
	if got := dom.StyleValue(f.doc.Query(headingSelector), "text-transform"); got != "uppercase" {
		t.Fatalf("text-transform = %q", got)
	}
	if v, _ := f.store.Lookup(prefs.KeyUppercase); v != "true" {
		t.Fatalf("stored = %q", v)
	}

	after := f.doc.ByID("wgl-f2p-helper-icon-position-after")
	f.doc.SetChecked(after, true)
	if dom.Checked(f.doc.ByID("wgl-f2p-helper-icon-position-before")) {
		t.Fatal("radio group should be exclusive")
	}
	f.doc.Dispatch(after, "change")
	if icon := f.doc.ByID(titleIconID); icon == nil || !dom.HasClass(icon, "after") {
		t.Fatal("icon did not move after the title")
	}

	color := f.doc.ByID("wgl-f2p-helper-color-members")
	f.doc.SetValue(color, "#ABC")
	f.doc.Dispatch(color, "change")
	if got := dom.StyleValue(f.doc.Query(headingSelector), "color"); got != "#aabbcc" {
		t.Fatalf("color = %q", got)
	}

	enabled := f.doc.ByID("wgl-f2p-helper-icon-enabled")
	f.doc.SetChecked(enabled, false)
	f.doc.Dispatch(enabled, "change")
	if f.doc.ByID(titleIconID) != nil {
		t.Fatal("icon should be removed")
	}
	if !dom.Hidden(f.doc.ByID(groupID(prefs.KeyIconEnabled))) {
		t.Fatal("position group should hide")
	}
}

func TestInvalidControlValueIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t, page("Yes"), Options{})
	f.eng.Reconcile()
	color := f.doc.ByID("wgl-f2p-helper-color-members")
	f.doc.SetValue(color, "not a color")
	f.doc.Dispatch(color, "change")
	if v, _ := f.store.Lookup(prefs.KeyColorMembers); v != "#ae2a5b" {
		t.Fatalf("stored = %q", v)
	}
}

func TestStarPNG(t *testing.T) {
	t.Parallel()
	data, err := StarPNG(48, MenuIconColor)
	if err != nil {
		t.Fatalf("StarPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 48 || b.Dy() != 48 {
		t.Fatalf("bounds = %v", b)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatal("corner should be transparent")
	}
	got := color.RGBAModel.Convert(img.At(24, 26)).(color.RGBA)
	if got != MenuIconColor {
		t.Fatalf("center = %v, want %v", got, MenuIconColor)
	}
	if _, err := StarPNG(0, MenuIconColor); err == nil {
		t.Fatal("zero size should fail")
	}
}

func TestStarSVG(t *testing.T) {
	t.Parallel()
	svg := StarSVG("#cbd9f4")
	if !strings.Contains(svg, `fill="#cbd9f4"`) || !strings.HasPrefix(svg, "<svg") {
		t.Fatalf("svg = %s", svg)
	}
	if uri := StarDataURI("#cbd9f4"); strings.ContainsAny(uri[len("data:image/svg+xml,"):], `<>"# `) {
		t.Fatalf("data uri not escaped: %s", uri)
	}
}
