package prefs

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadSeedsEveryKey(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	got := Load(NewStore(mem))
	if diff := cmp.Diff(Defaults, got); diff != "" {
		t.Fatalf("Load mismatch (-want +got):\n%s", diff)
	}
	want := map[string]string{
		DefaultPrefix + KeyIconEnabled:   "true",
		DefaultPrefix + KeyIconPosition:  "before",
		DefaultPrefix + KeyStyleEnabled:  "true",
		DefaultPrefix + KeyUppercase:     "false",
		DefaultPrefix + KeyStrikethrough: "true",
		DefaultPrefix + KeyColorEnabled:  "true",
		DefaultPrefix + KeyColorF2P:      "#439339",
		DefaultPrefix + KeyColorMembers:  "#ae2a5b",
	}
	if diff := cmp.Diff(want, mem.Raw("")); diff != "" {
		t.Fatalf("persisted mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLegacyNonePosition(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	s := NewStore(mem)
	_ = s.SetString(KeyIconPosition, "none")
	st := Load(s)
	if st.IconEnabled || st.IconPosition != PositionBefore {
		t.Fatalf("got %+v", st)
	}
}

func TestLoadInvalidColorFallsBack(t *testing.T) {
	t.Parallel()
	s := NewStore(NewMemory())
	_ = s.SetString(KeyColorMembers, "chartreuse-ish")
	if got := Load(s).ColorMembers; got != Defaults.ColorMembers {
		t.Fatalf("ColorMembers = %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewStore(NewMemory())
	want := Settings{
		IconEnabled:   false,
		IconPosition:  PositionAfter,
		StyleEnabled:  true,
		Uppercase:     true,
		Strikethrough: false,
		ColorEnabled:  false,
		ColorF2P:      "#00ff00",
		ColorMembers:  "#ff0000",
	}
	if err := want.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if diff := cmp.Diff(want, Load(s)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyChange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		raw     string
		stored  string
		wantErr error
	}{
		{"checkbox_on", KeyUppercase, "on", "true", nil},
		{"checkbox_false", KeyIconEnabled, "false", "false", nil},
		{"position_after", KeyIconPosition, "After", "after", nil},
		{"position_bad", KeyIconPosition, "sideways", "", ErrInvalidValue},
		{"color_short", KeyColorF2P, "#0F0", "#00ff00", nil},
		{"color_rgb", KeyColorMembers, "rgb(255, 0, 0)", "#ff0000", nil},
		{"color_bad", KeyColorMembers, "nope", "", ErrInvalidValue},
		{"bool_bad", KeyStyleEnabled, "maybe", "", ErrInvalidValue},
		{"unknown", "theme", "dark", "", ErrUnknownKey},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := NewStore(NewMemory())
			err := ApplyChange(s, tc.key, tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyChange: %v", err)
			}
			if got, _ := s.Lookup(tc.key); got != tc.stored {
				t.Fatalf("stored %q, want %q", got, tc.stored)
			}
		})
	}
}
