package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidValue is returned by ApplyChange for values a key cannot hold.
var ErrInvalidValue = errors.New("prefs: invalid value")

// ErrUnknownKey is returned by ApplyChange for keys outside the table.
var ErrUnknownKey = errors.New("prefs: unknown key")

// Preference keys, without the storage prefix.
const (
	KeyIconEnabled   = "icon-enabled"
	KeyIconPosition  = "icon-position"
	KeyStyleEnabled  = "style-enabled"
	KeyUppercase     = "style-uppercase"
	KeyStrikethrough = "style-strikethrough"
	KeyColorEnabled  = "color-enabled"
	KeyColorF2P      = "color-f2p"
	KeyColorMembers  = "color-members"
)

// Position places the title icon relative to the heading text.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	// positionNone is the older way of switching the icon off.
	positionNone Position = "none"
)

// Settings is the typed form of every stored preference.
type Settings struct {
	IconEnabled   bool
	IconPosition  Position
	StyleEnabled  bool
	Uppercase     bool
	Strikethrough bool
	ColorEnabled  bool
	ColorF2P      string
	ColorMembers  string
}

// Defaults holds the value each key takes on first read.
var Defaults = Settings{
	IconEnabled:   true,
	IconPosition:  PositionBefore,
	StyleEnabled:  true,
	Uppercase:     false,
	Strikethrough: true,
	ColorEnabled:  true,
	ColorF2P:      "#439339",
	ColorMembers:  "#ae2a5b",
}

type kind int

const (
	kindBool kind = iota
	kindPosition
	kindColor
)

type field struct {
	key  string
	kind kind
}

var table = []field{
	{KeyIconEnabled, kindBool},
	{KeyIconPosition, kindPosition},
	{KeyStyleEnabled, kindBool},
	{KeyUppercase, kindBool},
	{KeyStrikethrough, kindBool},
	{KeyColorEnabled, kindBool},
	{KeyColorF2P, kindColor},
	{KeyColorMembers, kindColor},
}

// Keys lists every preference key in table order.
func Keys() []string {
	out := make([]string, len(table))
	for i, f := range table {
		out[i] = f.key
	}
	return out
}

// Load reads every preference, seeding absent keys with Defaults.
// Unusable stored values fall back to the default.
func Load(s *Store) Settings {
	st := Settings{
		IconEnabled:   s.Bool(KeyIconEnabled, Defaults.IconEnabled),
		StyleEnabled:  s.Bool(KeyStyleEnabled, Defaults.StyleEnabled),
		Uppercase:     s.Bool(KeyUppercase, Defaults.Uppercase),
		Strikethrough: s.Bool(KeyStrikethrough, Defaults.Strikethrough),
		ColorEnabled:  s.Bool(KeyColorEnabled, Defaults.ColorEnabled),
	}
	switch pos := Position(s.String(KeyIconPosition, string(Defaults.IconPosition))); pos {
	case PositionBefore, PositionAfter:
		st.IconPosition = pos
	case positionNone:
		st.IconEnabled = false
		st.IconPosition = Defaults.IconPosition
	default:
		st.IconPosition = Defaults.IconPosition
	}
	st.ColorF2P = loadColor(s, KeyColorF2P, Defaults.ColorF2P)
	st.ColorMembers = loadColor(s, KeyColorMembers, Defaults.ColorMembers)
	return st
}

func loadColor(s *Store, key, def string) string {
	if c, ok := NormalizeColor(s.String(key, def)); ok {
		return c
	}
	return def
}

// Save writes every field. The first failure is returned after all writes
// have been attempted.
func (st Settings) Save(s *Store) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(s.SetBool(KeyIconEnabled, st.IconEnabled))
	keep(s.SetString(KeyIconPosition, string(st.IconPosition)))
	keep(s.SetBool(KeyStyleEnabled, st.StyleEnabled))
	keep(s.SetBool(KeyUppercase, st.Uppercase))
	keep(s.SetBool(KeyStrikethrough, st.Strikethrough))
	keep(s.SetBool(KeyColorEnabled, st.ColorEnabled))
	keep(s.SetString(KeyColorF2P, st.ColorF2P))
	keep(s.SetString(KeyColorMembers, st.ColorMembers))
	return first
}

// ApplyChange validates a raw value coming from a form control and writes
// it in its canonical form.
func ApplyChange(s *Store, key, raw string) error {
	for _, f := range table {
		if f.key != key {
			continue
		}
		switch f.kind {
		case kindBool:
			v, ok := ParseFormBool(raw)
			if !ok {
				return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
			}
			return s.SetBool(key, v)
		case kindPosition:
			pos := Position(strings.ToLower(strings.TrimSpace(raw)))
			if pos != PositionBefore && pos != PositionAfter {
				return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
			}
			return s.SetString(key, string(pos))
		case kindColor:
			c, ok := NormalizeColor(raw)
			if !ok {
				return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
			}
			return s.SetString(key, c)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// IsBoolKey reports whether key holds a checkbox value.
func IsBoolKey(key string) bool {
	for _, f := range table {
		if f.key == key {
			return f.kind == kindBool
		}
	}
	return false
}

// ParseFormBool accepts the spellings browsers and users send for a
// checkbox state.
func ParseFormBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "1", "yes":
		return true, true
	case "false", "off", "0", "no", "":
		return false, true
	}
	return false, false
}
