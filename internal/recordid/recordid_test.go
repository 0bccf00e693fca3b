package recordid

import "testing"

func TestNewTemporaryIsDisjointFromPermanent(t *testing.T) {
	id := NewTemporary()

	if !IsTemporary(id) {
		t.Errorf("NewTemporary() = %q, expected temporary prefix", id)
	}
	if IsPermanent(id) {
		t.Error("a temporary identifier must never classify as permanent")
	}
	if !IsValidTemporary(id) {
		t.Errorf("NewTemporary() = %q, expected a valid UUID v4 body", id)
	}
}

func TestNewTemporaryUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTemporary()
		if seen[id] {
			t.Fatalf("duplicate temporary identifier: %s", id)
		}
		seen[id] = true
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"tmp_550e8400-e29b-41d4-a716-446655440000", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsPermanent(tt.id); got != tt.want {
			t.Errorf("IsPermanent(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestIsValidTemporaryRejectsMalformed(t *testing.T) {
	bad := []string{
		"tmp_",
		"tmp_not-a-uuid",
		"tmp_550e8400-e29b-11d4-a716-446655440000", // v1, not v4
		"550e8400-e29b-41d4-a716-446655440000",     // no prefix
	}
	for _, id := range bad {
		if IsValidTemporary(id) {
			t.Errorf("IsValidTemporary(%q) = true, want false", id)
		}
	}
}
