// Package sqlite holds the raw database/sql archive store. Terminal orders
// are flushed here as immutable JSON rows; the live gorm store stays small
// and the archive is append-only.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ordercore/internal/order"

	_ "modernc.org/sqlite"
)

type ArchiveStore struct {
	db *sql.DB
}

func NewArchive(path string) (*ArchiveStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("archive store: database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS archived_orders (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	status TEXT NOT NULL,
	archived_at INTEGER NOT NULL DEFAULT (unixepoch()),
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_symbol ON archived_orders(symbol);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &ArchiveStore{db: db}, nil
}

// Archive writes one terminal record. Re-archiving an id is a no-op, so
// the sweep can safely run again after a partial failure.
func (s *ArchiveStore) Archive(ctx context.Context, o *order.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("archive store: order id required")
	}
	if !o.Status.Terminal() {
		return fmt.Errorf("archive store: order %s is not terminal (%s)", o.ID, o.Status)
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding order %s: %w", o.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO archived_orders (id, symbol, status, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		o.ID, order.NormalizeSymbol(o.Symbol), string(o.Status), string(payload))
	return err
}

// Load retrieves one archived record.
func (s *ArchiveStore) Load(ctx context.Context, id string) (*order.Order, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM archived_orders WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archived order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	var o order.Order
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return nil, fmt.Errorf("decoding archived order %s: %w", id, err)
	}
	return &o, nil
}

func (s *ArchiveStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
