// Package db abstracts the relational stores behind the batched record
// sink.
//
// Each backend registers itself under a kind ("sqlite", "postgres",
// "mssql") from an init function; the sink selects one through New. Every
// backend persists the same row shape: auto-increment id, record tag,
// serialized JSON and an insertion timestamp defaulted by the database.
package db

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Row is one record ready for insertion.
type Row struct {
	Tag  string
	JSON string
}

// Repository is the minimal surface the batched sink needs. InsertRows must
// apply the whole slice in a single transaction, so a crash between calls
// loses at most one in-flight batch.
type Repository interface {
	// EnsureTable idempotently creates the records table.
	EnsureTable(ctx context.Context, table string) error

	// InsertRows bulk-inserts and commits one batch, returning the number of
	// rows written.
	InsertRows(ctx context.Context, table string, rows []Row) (int64, error)

	// Close releases connections. Call once when the pipeline ends.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Called from backend init
// functions; duplicate registration is a programming error and panics.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("db: Register called with empty kind")
	}
	if f == nil {
		panic("db: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("db: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository for the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("db: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("db: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is safe to splice into DDL as a table name.
func ValidIdent(s string) bool { return identRe.MatchString(s) }
