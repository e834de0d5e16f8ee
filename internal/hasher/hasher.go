// Package hasher computes deterministic digests of structured invoice data.
//
// The canonical form is sorted keys, compact separators and UTF-8 text without
// ASCII escaping. Two payloads hash equal only when their values are already
// identical, so callers must normalise fields first (invoice money always uses a
// two-digit scale, so 16 and 16.0 are both hashed as 16.00).
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// DigestLength is the length of a hex encoded SHA-256 digest
const DigestLength = 64

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidationError reports a value that cannot be canonicalized. It is a caller
// programming error: the input is never silently coerced.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot canonicalize %s: %s", e.Path, e.Reason)
}

// Hash returns the lowercase hex SHA-256 digest of the canonical form of data.
func Hash(data map[string]any) (string, error) {
	if data == nil {
		return "", &ValidationError{Path: "$", Reason: "invoice data is nil"}
	}
	canonical, err := Canonicalize(data)
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of already canonical bytes
func HashBytes(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// IsDigest reports whether s is a 64 character lowercase hex digest
func IsDigest(s string) bool {
	return digestPattern.MatchString(s)
}
