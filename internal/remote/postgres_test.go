package remote

import (
	"testing"
	"time"
)

func TestBuildInsertQuerySingleRow(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	query, args := buildInsertQuery([]NewRecord{{Content: "a", CreatedAt: created}})

	want := "INSERT INTO memostream_records (content, created_at) VALUES ($1, $2) RETURNING id, content, created_at"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 2 || args[0] != "a" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildInsertQueryBatch(t *testing.T) {
	now := time.Now()
	rows := []NewRecord{
		{Content: "a", CreatedAt: now},
		{Content: "b", CreatedAt: now},
		{Content: "c", CreatedAt: now},
	}
	query, args := buildInsertQuery(rows)

	want := "INSERT INTO memostream_records (content, created_at) VALUES ($1, $2), ($3, $4), ($5, $6) RETURNING id, content, created_at"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	// Placeholder order must match queue order (FIFO batch).
	if args[0] != "a" || args[2] != "b" || args[4] != "c" {
		t.Errorf("args out of order: %v", args)
	}
}

func TestNewPostgresRejectsEmptyDSN(t *testing.T) {
	if _, err := NewPostgres("  ", ""); err == nil {
		t.Error("expected an error for empty dsn")
	}
}
