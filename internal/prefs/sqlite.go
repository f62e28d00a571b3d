package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the preferences table. OpenSQLite applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS preferences (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// SQLite persists preferences in a SQLite database so they survive
// restarts of the proxy.
type SQLite struct {
	db    *sql.DB
	ns    string
	clock func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open preferences db: %w", err)
	}
	// modernc's driver serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply preferences schema: %w", err)
	}
	return NewSQLite(db), nil
}

// NewSQLite wraps an already migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, clock: time.Now}
}

// Namespace returns a backend scoped to one visitor.
func (s *SQLite) Namespace(name string) Backend {
	return &SQLite{db: s.db, ns: name, clock: s.clock}
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE namespace = ? AND key = ?`, s.ns, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %q: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO preferences (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.ns, key, value, s.clock().Unix())
	if err != nil {
		return fmt.Errorf("write preference %q: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
