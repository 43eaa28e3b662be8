// Package session keeps the authenticated user's bearer credential in a
// local SQLite database so it survives restarts until an explicit logout
// or an auth failure clears it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Credential is the opaque bearer credential for the authenticated user.
// The token is never parsed or validated client-side.
type Credential struct {
	Username string
	Token    string
}

// Store holds at most one credential.
type Store struct {
	db      *sql.DB
	onClear func()
}

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	username TEXT NOT NULL,
	token    TEXT NOT NULL,
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Open creates or opens the session database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// OnClear registers a hook fired whenever the credential is removed.
// The app uses it to route back to the login surface.
func (s *Store) OnClear(fn func()) {
	s.onClear = fn
}

// Save stores the credential, replacing any previous one.
func (s *Store) Save(ctx context.Context, cred Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, username, token) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			token    = excluded.token,
			saved_at = CURRENT_TIMESTAMP`,
		cred.Username, cred.Token)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the stored credential, or nil when logged out.
func (s *Store) Load(ctx context.Context) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT username, token FROM session WHERE id = 1`)

	var cred Credential
	if err := row.Scan(&cred.Username, &cred.Token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &cred, nil
}

// Clear removes the credential and fires the clear hook.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if s.onClear != nil {
		s.onClear()
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
