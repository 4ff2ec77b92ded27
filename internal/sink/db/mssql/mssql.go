// Package mssql is the SQL Server backend of the record sink, built on
// database/sql with the go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"xmlstream/internal/sink/db"
)

type repo struct {
	db *sql.DB
}

func init() {
	db.Register("mssql", New)
}

func New(ctx context.Context, cfg db.Config) (db.Repository, error) {
	conn, err := sql.Open("sqlserver", cfg.DSN)
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

// EnsureTable creates the records table if missing. SQL Server has no
// CREATE TABLE IF NOT EXISTS, so the DDL is guarded by an OBJECT_ID probe.
func (r *repo) EnsureTable(ctx context.Context, table string) error {
	if !db.ValidIdent(table) {
		return fmt.Errorf("mssql: invalid table name %q", table)
	}
	ddl := fmt.Sprintf(`IF OBJECT_ID(N'%[1]s', N'U') IS NULL
CREATE TABLE %[1]s (
  id BIGINT IDENTITY(1,1) PRIMARY KEY,
  tag NVARCHAR(128) NULL,
  json NVARCHAR(MAX) NOT NULL,
  added_at DATETIME2 DEFAULT SYSUTCDATETIME()
);`, table)

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", table, err)
	}
	return nil
}

// InsertRows writes one batch in a single transaction. SQL Server limits a
// statement to 2100 parameters, far above any sane batch size here.
func (r *repo) InsertRows(ctx context.Context, table string, rows []db.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !db.ValidIdent(table) {
		return 0, fmt.Errorf("mssql: invalid table name %q", table)
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
		fmt.Fprintf(&b, "(@p%d,@p%d)", i*2+1, i*2+2)
		args = append(args, row.Tag, row.JSON)
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("mssql: insert batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit batch: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}
