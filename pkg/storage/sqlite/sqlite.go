// Package sqlite provides a history store backed by a SQLite key/value table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Driver stores the history as a single JSON value under storage.HistoryKey.
type Driver struct {
	db    *sql.DB
	quota int
}

// Option configures a Driver.
type Option func(*Driver)

// WithQuota sets the maximum encoded history size in bytes.
func WithQuota(bytes int) Option {
	return func(d *Driver) { d.quota = bytes }
}

// NewDriver opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func NewDriver(ctx context.Context, path string, opts ...Option) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	d := &Driver{db: db, quota: storage.DefaultQuotaBytes}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Driver) Save(ctx context.Context, entries []storage.Entry) error {
	data, err := storage.Encode(entries, d.quota)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		storage.HistoryKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func (d *Driver) Load(ctx context.Context) ([]storage.Entry, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, storage.HistoryKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return storage.Decode([]byte(value))
}

func (d *Driver) Clear(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, storage.HistoryKey); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}

var _ storage.HistoryStore = (*Driver)(nil)
