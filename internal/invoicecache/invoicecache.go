// Package invoicecache is a small durable key-value store backed by SQLite.
// It remembers the last invoice identifier used per project and calendar
// month, and doubles as the bot's per-chat preference store. Entries never
// expire; writes are last-write-wins.
package invoicecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists invoice identifiers and chat preferences in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the store at the given path.
func Open(path string) (*Store, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Serialize writers; the bot mutates from multiple handlers.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InvoiceID returns the cached invoice identifier for the given project and
// YYYY-MM month, or the empty string when the key was never written.
func (s *Store) InvoiceID(ctx context.Context, projectID int64, month string) (string, error) {
	return s.get(ctx, invoiceKey(projectID, month))
}

// RememberInvoiceID stores the invoice identifier for the given project and
// month, overwriting any previous value.
func (s *Store) RememberInvoiceID(ctx context.Context, projectID int64, month, invoiceID string) error {
	return s.put(ctx, invoiceKey(projectID, month), invoiceID)
}

// Preference returns a per-chat preference value, empty when unset.
func (s *Store) Preference(ctx context.Context, chatID int64, name string) (string, error) {
	return s.get(ctx, preferenceKey(chatID, name))
}

// SetPreference stores a per-chat preference value.
func (s *Store) SetPreference(ctx context.Context, chatID int64, name, value string) error {
	return s.put(ctx, preferenceKey(chatID, name), value)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

func invoiceKey(projectID int64, month string) string {
	return fmt.Sprintf("invoice:%d:%s", projectID, month)
}

func preferenceKey(chatID int64, name string) string {
	return fmt.Sprintf("pref:%d:%s", chatID, name)
}
