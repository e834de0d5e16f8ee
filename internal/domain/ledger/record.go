package ledger

import (
	"time"
)

// TimestampLayout is the UTC ISO-8601 form recorded on every entry
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Record is one registration in the append-only ledger
type Record struct {
	Hash      string         `json:"hash"`
	Metadata  map[string]any `json:"metadata"`
	TxRef     string         `json:"tx_ref"`
	Timestamp string         `json:"timestamp"`
}

// RecordedAt parses the record timestamp
func (r *Record) RecordedAt() (time.Time, error) {
	return time.Parse(TimestampLayout, r.Timestamp)
}

// MetadataString returns a metadata value as a string when it is one
func (r *Record) MetadataString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// Store is the ledger contract shared by the registrar, the verifier and operator tooling
type Store interface {
	Append(hash string, metadata map[string]any) (*Record, error)
	Lookup(hash string) (*Record, error)
	Clear() error
}

// Reader is the read-only part of Store
type Reader interface {
	Lookup(hash string) (*Record, error)
}
