package models

import (
	"testing"
	"time"

	"github.com/kimhsiao/memostream/internal/recordid"
)

func TestNewPendingRecord(t *testing.T) {
	rec := NewPendingRecord("hello")

	if !rec.Pending {
		t.Error("expected Pending to be true")
	}
	if rec.Confirmed {
		t.Error("a pending record must not be confirmed")
	}
	if !recordid.IsTemporary(rec.ID) {
		t.Errorf("expected a temporary identifier, got %q", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if !rec.Valid() {
		t.Error("a freshly created pending record must be valid")
	}
}

func TestNewConfirmedRecord(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewConfirmedRecord("550e8400-e29b-41d4-a716-446655440000", "hi", created)

	if rec.Pending {
		t.Error("a confirmed record must not be pending")
	}
	if !rec.Confirmed {
		t.Error("expected Confirmed to be true")
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, created)
	}
}

func TestRecordValid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"empty id", Record{Content: "x"}, false},
		{"empty content", Record{ID: "a"}, false},
		{"both flags set", Record{ID: "a", Content: "x", Pending: true, Confirmed: true}, false},
		{"pending only", Record{ID: "a", Content: "x", Pending: true}, true},
		{"confirmed only", Record{ID: "a", Content: "x", Confirmed: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
