// Package filestore keeps the invoice ledger in a single JSON file on local disk.
package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/hasher"
)

var (
	locksMu sync.Mutex
	locks   = make(map[string]*sync.RWMutex)
)

// pathLock returns the process-wide lock for a store path so that every Ledger
// opened on the same file serializes its writes.
func pathLock(path string) *sync.RWMutex {
	locksMu.Lock()
	defer locksMu.Unlock()

	mu, ok := locks[path]
	if !ok {
		mu = &sync.RWMutex{}
		locks[path] = mu
	}
	return mu
}

// Ledger is an append-only list of hash records persisted as a JSON array.
// Every write replaces the whole file through a rename, so readers in this or
// another process never observe a truncated array.
type Ledger struct {
	path   string
	mu     *sync.RWMutex
	logger *slog.Logger

	now      func() time.Time
	newTxRef func() string
}

// NewLedger creates a ledger backed by the file at path. The file is created on the
// first append. A nil logger falls back to slog.Default.
func NewLedger(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	return &Ledger{
		path:     abs,
		mu:       pathLock(abs),
		logger:   logger.With("component", "ledger", "path", abs),
		now:      time.Now,
		newTxRef: newTxRef,
	}
}

// Path returns the absolute location of the backing file
func (l *Ledger) Path() string {
	return l.path
}

// Append records hash with a copy of the caller's metadata and returns the stored record
func (l *Ledger) Append(hash string, metadata map[string]any) (*ledger.Record, error) {
	if !hasher.IsDigest(hash) {
		return nil, fmt.Errorf("append %q: %w", hash, ledger.ErrInvalidHash)
	}
	metadata = maps.Clone(metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}

	record := &ledger.Record{
		Hash:      hash,
		Metadata:  metadata,
		TxRef:     l.newTxRef(),
		Timestamp: l.now().UTC().Format(ledger.TimestampLayout),
	}
	records = append(records, record)

	if err := l.persist(records); err != nil {
		return nil, err
	}

	l.logger.Info("ledger record appended",
		"hash", record.Hash,
		"tx_ref", record.TxRef,
		"records", len(records))

	return record, nil
}

// Lookup returns the first record with the given hash
func (l *Ledger) Lookup(hash string) (*ledger.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Hash == hash {
			return record, nil
		}
	}

	return nil, ledger.ErrRecordNotFound{Hash: hash}
}

// Clear deletes the backing file. A missing file is not an error.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ledger.ErrStorage{Op: "clear", Path: l.path, Err: err}
	}

	l.logger.Warn("ledger cleared")
	return nil
}

// load reads every record. A missing file is an empty ledger; anything that cannot
// be read or parsed is a storage error.
func (l *Ledger) load() ([]*ledger.Record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &ledger.ErrStorage{Op: "read", Path: l.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var records []*ledger.Record
	if err := decoder.Decode(&records); err != nil {
		l.logger.Error("ledger file is corrupt", "error", err)
		return nil, &ledger.ErrStorage{Op: "decode", Path: l.path, Err: err}
	}

	return records, nil
}

// persist writes records to a temporary sibling file, syncs it and renames it over
// the store.
func (l *Ledger) persist(records []*ledger.Record) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return &ledger.ErrStorage{Op: "encode", Path: l.path, Err: err}
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ledger.ErrStorage{Op: "mkdir", Path: l.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return &ledger.ErrStorage{Op: "write", Path: l.path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return &ledger.ErrStorage{Op: "write", Path: l.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &ledger.ErrStorage{Op: "sync", Path: l.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ledger.ErrStorage{Op: "write", Path: l.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &ledger.ErrStorage{Op: "chmod", Path: l.path, Err: err}
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return &ledger.ErrStorage{Op: "rename", Path: l.path, Err: err}
	}
	committed = true

	return nil
}

// newTxRef returns 32 lowercase hex characters drawn from a random UUID
func newTxRef() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
