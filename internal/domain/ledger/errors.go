package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidHash is returned when an append is attempted with something other than a
// 64 character lowercase hex digest
var ErrInvalidHash = errors.New("hash must be 64 lowercase hexadecimal characters")

// ErrRecordNotFound indicates that no record carries the hash
type ErrRecordNotFound struct {
	Hash string
}

func (e ErrRecordNotFound) Error() string {
	return "ledger record not found: " + e.Hash
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	// An empty target hash matches any missing record
	if t.Hash == "" {
		return true
	}
	return e.Hash == t.Hash
}

// ErrStorage reports that the ledger file could not be read, parsed or written.
// It is an operational failure and never means "not found".
type ErrStorage struct {
	Op   string
	Path string
	Err  error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is, or wraps, an ErrStorage
func IsStorageError(err error) bool {
	var storageErr *ErrStorage
	return errors.As(err, &storageErr)
}
