// Package postgres is the Postgres backend of the record sink, built on a
// pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"xmlstream/internal/sink/db"
)

type repo struct {
	pool *pgxpool.Pool
}

func init() {
	db.Register("postgres", New)
}

// New connects a pool to cfg.DSN.
func New(ctx context.Context, cfg db.Config) (db.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &repo{pool: pool}, nil
}

func (r *repo) Close() { r.pool.Close() }

func (r *repo) EnsureTable(ctx context.Context, table string) error {
	if !db.ValidIdent(table) {
		return fmt.Errorf("postgres: invalid table name %q", table)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  tag TEXT,
  json TEXT NOT NULL,
  added_at TIMESTAMPTZ DEFAULT now()
);`, table)

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	return nil
}

// InsertRows writes one batch in a single transaction using a multi-row
// insert with numbered placeholders.
func (r *repo) InsertRows(ctx context.Context, table string, rows []db.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !db.ValidIdent(table) {
		return 0, fmt.Errorf("postgres: invalid table name %q", table)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (tag, json) VALUES ")

	args := make([]any, 0, len(rows)*2)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d,$%d)", i*2+1, i*2+2)
		args = append(args, row.Tag, row.JSON)
	}

	ct, err := tx.Exec(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit batch: %w", err)
	}
	return ct.RowsAffected(), nil
}
