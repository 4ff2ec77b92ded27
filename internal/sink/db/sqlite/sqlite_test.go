package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"xmlstream/internal/sink/db"
)

func openTestRepo(t *testing.T) *repo {
	t.Helper()
	r, err := New(context.Background(), db.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(r.Close)
	return r.(*repo)
}

func TestEnsureTableIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.EnsureTable(ctx, "records"); err != nil {
			t.Fatalf("ensure #%d: %v", i+1, err)
		}
	}
}

func TestEnsureTableRejectsBadIdent(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	if err := repo.EnsureTable(context.Background(), "bad name; drop"); err == nil {
		t.Fatal("expected invalid identifier to be rejected")
	}
}

func TestInsertRowsRoundTrip(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	if err := repo.EnsureTable(ctx, "records"); err != nil {
		t.Fatal(err)
	}

	rows := []db.Row{
		{Tag: "host", JSON: `{"_tag":"host","a":"1"}`},
		{Tag: "host", JSON: `{"_tag":"host","a":"2"}`},
		{Tag: "", JSON: `{"_tag":"x"}`},
	}
	n, err := repo.InsertRows(ctx, "records", rows)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d rows, want 3", n)
	}

	var count int
	if err := repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count=%d, want 3", count)
	}

	var tag, js string
	err = repo.db.QueryRowContext(ctx,
		"SELECT tag, json FROM records ORDER BY id LIMIT 1").Scan(&tag, &js)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if tag != "host" || js != `{"_tag":"host","a":"1"}` {
		t.Fatalf("got tag=%q json=%s", tag, js)
	}
}

func TestInsertRowsEmptyBatch(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	n, err := repo.InsertRows(context.Background(), "records", nil)
	if err != nil {
		t.Fatalf("empty insert: %v", err)
	}
	if n != 0 {
		t.Fatalf("n=%d, want 0", n)
	}
}
