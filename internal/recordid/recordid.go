// Package recordid generates and classifies record identifiers.
//
// Temporary identifiers are minted locally when a record is created offline;
// permanent identifiers are assigned by the remote store. The two spaces are
// disjoint by construction: temporary identifiers carry a "tmp_" prefix over
// a UUID v4, permanent identifiers are bare UUIDs.
package recordid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// TemporaryPrefix marks locally generated identifiers.
const TemporaryPrefix = "tmp_"

var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// NewTemporary generates a fresh temporary identifier.
func NewTemporary() string {
	return TemporaryPrefix + uuid.New().String()
}

// IsTemporary reports whether id was generated locally.
func IsTemporary(id string) bool {
	return strings.HasPrefix(id, TemporaryPrefix)
}

// IsPermanent reports whether id looks like a remote-assigned identifier.
func IsPermanent(id string) bool {
	return !IsTemporary(id) && id != ""
}

// IsValidTemporary checks that a temporary identifier wraps a well-formed
// UUID v4 with correct variant bits.
func IsValidTemporary(id string) bool {
	if !IsTemporary(id) {
		return false
	}
	return uuidV4Regex.MatchString(strings.TrimPrefix(id, TemporaryPrefix))
}
