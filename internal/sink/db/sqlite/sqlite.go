// Package sqlite is the embedded-store backend of the record sink, built on
// the pure-Go modernc driver through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"xmlstream/internal/sink/db"
)

type repo struct {
	db *sql.DB
}

func init() {
	db.Register("sqlite", New)
}

// New opens (creating if needed) the SQLite database at cfg.DSN.
func New(ctx context.Context, cfg db.Config) (db.Repository, error) {
	conn, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &repo{db: conn}, nil
}

func (r *repo) Close() { _ = r.db.Close() }

// EnsureTable creates the records table if missing.
//
// added_at is stored as TEXT: modernc.org/sqlite has no native timestamp
// affinity and datetime('now') strings round-trip reliably.
func (r *repo) EnsureTable(ctx context.Context, table string) error {
	if !db.ValidIdent(table) {
		return fmt.Errorf("sqlite: invalid table name %q", table)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tag TEXT,
  json TEXT NOT NULL,
  added_at TEXT DEFAULT (datetime('now'))
);`, table)

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return nil
}

// InsertRows writes one batch in a single transaction using a multi-row
// insert.
func (r *repo) InsertRows(ctx context.Context, table string, rows []db.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !db.ValidIdent(table) {
		return 0, fmt.Errorf("sqlite: invalid table name %q", table)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (tag, json) VALUES ")

	args := make([]any, 0, len(rows)*2)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?,?)")
		args = append(args, row.Tag, row.JSON)
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit batch: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}
