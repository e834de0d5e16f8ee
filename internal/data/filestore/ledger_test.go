package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zra-invoice-integrity/internal/domain/ledger"
)

const (
	hashA = "df9a2915d6c8ab1fc2334a8ed1093fb90eb96ed8c07a68311e63839750835bd7"
	hashB = "0f82a065fe20b2f86d45a97ba50e42db41a0a4c306d0f4c0c9defe1255ae6ef1"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewLedger(filepath.Join(t.TempDir(), "ledger.json"), logger)
}

func TestLedger_AppendLookupRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.FixedZone("CAT", 2*60*60))
	l.now = func() time.Time { return fixed }

	appended, err := l.Append(hashA, map[string]any{"invoice_id": "INV-1"})
	require.NoError(t, err)
	assert.Equal(t, hashA, appended.Hash)
	assert.Regexp(t, `^[0-9a-f]{32}$`, appended.TxRef)
	assert.Equal(t, "2026-03-01T07:30:00.123456Z", appended.Timestamp)

	found, err := l.Lookup(hashA)
	require.NoError(t, err)
	assert.Equal(t, appended.Hash, found.Hash)
	assert.Equal(t, appended.TxRef, found.TxRef)
	assert.Equal(t, appended.Timestamp, found.Timestamp)
	assert.Equal(t, "INV-1", found.MetadataString("invoice_id"))

	recordedAt, err := found.RecordedAt()
	require.NoError(t, err)
	assert.True(t, recordedAt.Equal(fixed))
}

func TestLedger_LookupMissing(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Lookup(hashA)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound{})
	assert.False(t, ledger.IsStorageError(err))

	_, err = l.Append(hashA, nil)
	require.NoError(t, err)

	_, err = l.Lookup(hashB)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound{Hash: hashB})
}

func TestLedger_AppendCopiesMetadata(t *testing.T) {
	l := newTestLedger(t)
	metadata := map[string]any{"invoice_id": "INV-1"}

	appended, err := l.Append(hashA, metadata)
	require.NoError(t, err)

	metadata["invoice_id"] = "INV-2"
	assert.Equal(t, "INV-1", appended.MetadataString("invoice_id"))

	found, err := l.Lookup(hashA)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", found.MetadataString("invoice_id"))
}

func TestLedger_NilLogger(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "ledger.json"), nil)

	_, err := l.Append(hashA, nil)
	require.NoError(t, err)
	_, err = l.Lookup(hashA)
	assert.NoError(t, err)
}

func TestLedger_DuplicateHashReturnsFirstRecord(t *testing.T) {
	l := newTestLedger(t)

	first, err := l.Append(hashA, map[string]any{"invoice_id": "INV-1"})
	require.NoError(t, err)
	second, err := l.Append(hashA, map[string]any{"invoice_id": "INV-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TxRef, second.TxRef)

	found, err := l.Lookup(hashA)
	require.NoError(t, err)
	assert.Equal(t, first.TxRef, found.TxRef)
	assert.Equal(t, "INV-1", found.MetadataString("invoice_id"))
}

func TestLedger_StorageFormat(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Append(hashA, map[string]any{"invoice_id": "INV-1", "amount": json.Number("100.00")})
	require.NoError(t, err)
	_, err = l.Append(hashB, map[string]any{"invoice_id": "INV-2"})
	require.NoError(t, err)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	for _, entry := range raw {
		assert.Len(t, entry, 4)
		for _, field := range []string{"hash", "metadata", "tx_ref", "timestamp"} {
			assert.Contains(t, entry, field)
		}
	}
	assert.Equal(t, `"`+hashA+`"`, string(raw[0]["hash"]))
	assert.Equal(t, `"`+hashB+`"`, string(raw[1]["hash"]))
	assert.Contains(t, string(data), `"amount": 100.00`)

	// Rewrites keep numbers exactly as they were first stored
	_, err = l.Append(hashA, nil)
	require.NoError(t, err)
	data, err = os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount": 100.00`)

	entries, err := os.ReadDir(filepath.Dir(l.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLedger_AppendRejectsInvalidHash(t *testing.T) {
	l := newTestLedger(t)

	for _, bad := range []string{"", "abc", strings.ToUpper(hashA), hashA + "0", strings.Repeat("g", 64)} {
		_, err := l.Append(bad, nil)
		assert.ErrorIs(t, err, ledger.ErrInvalidHash, "hash %q", bad)
	}

	_, err := os.Stat(l.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLedger_Clear(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Clear(), "clearing a missing store is a no-op")

	_, err := l.Append(hashA, nil)
	require.NoError(t, err)

	require.NoError(t, l.Clear())

	_, err = os.Stat(l.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = l.Lookup(hashA)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound{})
}

func TestLedger_CorruptStoreIsStorageError(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, os.WriteFile(l.Path(), []byte(`[{"hash": "abc"`), 0o644))

	_, err := l.Lookup(hashA)
	require.Error(t, err)
	assert.True(t, ledger.IsStorageError(err))
	assert.False(t, errors.Is(err, ledger.ErrRecordNotFound{}))

	_, err = l.Append(hashA, nil)
	var storageErr *ledger.ErrStorage
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "decode", storageErr.Op)
	assert.Equal(t, l.Path(), storageErr.Path)

	// The corrupt file is left untouched for the operator
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, `[{"hash": "abc"`, string(data))
}

func TestLedger_UnreadableStoreIsStorageError(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, os.Mkdir(l.Path(), 0o755))

	_, err := l.Lookup(hashA)
	assert.True(t, ledger.IsStorageError(err))
}

func TestLedger_EmptyFileIsEmptyLedger(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, os.WriteFile(l.Path(), nil, 0o644))

	_, err := l.Lookup(hashA)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound{})
}

func TestLedger_CreatesParentDirectories(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.json")
	l := NewLedger(path, logger)

	_, err := l.Append(hashA, nil)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLedger_ConcurrentAppendsAcrossInstances(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "ledger.json")
	first := NewLedger(path, logger)
	second := NewLedger(path, logger)

	const appends = 40
	var wg sync.WaitGroup
	txRefs := make([]string, appends)
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := first
			if i%2 == 1 {
				l = second
			}
			record, err := l.Append(hashA, map[string]any{"invoice_id": fmt.Sprintf("INV-%d", i)})
			if assert.NoError(t, err) {
				txRefs[i] = record.TxRef
			}
			_, err = l.Lookup(hashA)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []ledger.Record
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, appends)

	unique := make(map[string]struct{}, appends)
	for _, r := range records {
		unique[r.TxRef] = struct{}{}
	}
	assert.Len(t, unique, appends)
}

func TestLedger_SharesLockPerPath(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()

	a := NewLedger(filepath.Join(dir, "ledger.json"), logger)
	b := NewLedger(filepath.Join(dir, ".", "ledger.json"), logger)
	c := NewLedger(filepath.Join(dir, "other.json"), logger)

	assert.Same(t, a.mu, b.mu)
	assert.NotSame(t, a.mu, c.mu)
}
