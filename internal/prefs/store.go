// Package prefs stores the annotator's user preferences.
//
// Keys are namespaced with a fixed prefix so they can share storage with
// other data. Storage failures never reach callers as panics or hard
// errors on read: they are logged and the caller gets the fallback.
package prefs

import (
	"strings"

	"go.uber.org/zap"
)

// AppName is the display name keys are derived from.
const AppName = "OSRS Wiki F2P Helper"

// DefaultPrefix is prepended to every key.
var DefaultPrefix = PrefixFor(AppName)

// Store is a typed, prefixed view over a Backend.
type Store struct {
	backend Backend
	prefix  string
	logger  *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets the logger used for storage failures.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore wraps a backend.
func NewStore(b Backend, opts ...StoreOption) *Store {
	s := &Store{backend: b, prefix: DefaultPrefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrefixFor derives a storage prefix from an application name, e.g.
// "OSRS Wiki F2P Helper" -> "osrs_wiki_f2p_helper_".
func PrefixFor(appName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(appName)), " ", "_") + "_"
}

// Key returns the prefixed storage key.
func (s *Store) Key(key string) string { return s.prefix + key }

// Lookup reads a raw value without seeding.
func (s *Store) Lookup(key string) (string, bool) {
	if s.backend == nil {
		return "", false
	}
	v, ok, err := s.backend.Get(s.Key(key))
	if err != nil {
		s.logger.Error("Error retrieving preference", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// String returns the stored value or, when absent, persists def and
// returns it.
func (s *Store) String(key, def string) string {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	_ = s.SetString(key, def)
	return def
}

// Bool reads a "true"/"false" value. Anything else counts as absent and is
// replaced by def.
func (s *Store) Bool(key string, def bool) bool {
	if v, ok := s.Lookup(key); ok {
		switch v {
		case "true":
			return true
		case "false":
			return false
		}
	}
	_ = s.SetBool(key, def)
	return def
}

// SetString persists a value. Failures are logged and returned.
func (s *Store) SetString(key, value string) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Set(s.Key(key), value); err != nil {
		s.logger.Error("Error storing preference", zap.String("key", key), zap.Error(err))
		return err
	}
	s.logger.Debug("Stored preference", zap.String("key", key), zap.String("value", value))
	return nil
}

// SetBool persists a boolean as "true" or "false".
func (s *Store) SetBool(key string, value bool) error {
	return s.SetString(key, formatBool(value))
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
