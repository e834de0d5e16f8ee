package invoice

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zra-invoice-integrity/internal/domain/shared"
	"github.com/zra-invoice-integrity/internal/hasher"
)

func TestNewInvoice(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		before := time.Now().UTC()
		inv, err := NewInvoice(" 1000000001 ", "2000000002", decimal.RequireFromString("16"), decimal.RequireFromString("100.004"))
		require.NoError(t, err)
		require.NotNil(t, inv)

		assert.NotEqual(t, uuid.Nil, inv.ID)
		assert.Equal(t, "1000000001", inv.SupplierTPIN)
		assert.Equal(t, "2000000002", inv.BuyerTPIN)
		assert.True(t, decimal.RequireFromString("16.00").Equal(inv.VAT))
		assert.True(t, decimal.RequireFromString("100.00").Equal(inv.Amount))
		assert.Equal(t, shared.InvoiceStatusPending, inv.Status)
		assert.Equal(t, shared.RegistrationStatusPending, inv.RegistrationStatus)
		assert.False(t, inv.IsRegistered())
		assert.WithinDuration(t, before, inv.CreatedAt, time.Second)
		assert.Equal(t, inv.CreatedAt, inv.UpdatedAt)
	})

	testCases := []struct {
		name        string
		supplier    string
		buyer       string
		vat         string
		amount      string
		expectedErr error
	}{
		{"ShortSupplierTPIN", "123456789", "2000000002", "1", "10", ErrInvalidSupplierTPIN},
		{"AlphaSupplierTPIN", "10000000AB", "2000000002", "1", "10", ErrInvalidSupplierTPIN},
		{"LongBuyerTPIN", "1000000001", "20000000021", "1", "10", ErrInvalidBuyerTPIN},
		{"NegativeVAT", "1000000001", "2000000002", "-0.01", "10", ErrNegativeVAT},
		{"ZeroAmount", "1000000001", "2000000002", "0", "0", ErrInvalidAmount},
		{"AmountRoundsToZero", "1000000001", "2000000002", "0", "0.004", ErrInvalidAmount},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := NewInvoice(tc.supplier, tc.buyer, decimal.RequireFromString(tc.vat), decimal.RequireFromString(tc.amount))
			assert.Nil(t, inv)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}

	t.Run("ZeroVATAllowed", func(t *testing.T) {
		inv, err := NewInvoice("1000000001", "2000000002", decimal.Zero, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.True(t, inv.VAT.IsZero())
	})
}

func TestInvoice_HashPayload(t *testing.T) {
	inv := &Invoice{
		SupplierTPIN: "1000000001",
		BuyerTPIN:    "2000000002",
		VAT:          decimal.NewFromInt(16),
		Amount:       decimal.NewFromInt(100),
	}

	payload := inv.HashPayload()
	assert.Equal(t, json.Number("16.00"), payload["vat"])
	assert.Equal(t, json.Number("100.00"), payload["amount"])
	assert.Len(t, payload, 4)

	digest, err := hasher.Hash(payload)
	require.NoError(t, err)
	assert.Equal(t, "dfe81b8051bfd99983d9100a02e88ea436956430d6f5790ad4b172dc3fb8a5fe", digest)

	// The same money with a different scale hashes identically
	inv.Amount = decimal.RequireFromString("100.0")
	again, err := hasher.Hash(inv.HashPayload())
	require.NoError(t, err)
	assert.Equal(t, digest, again)
}

func TestInvoice_LedgerMetadata(t *testing.T) {
	inv := &Invoice{ID: uuid.New(), SupplierTPIN: "1000000001", BuyerTPIN: "2000000002"}

	meta := inv.LedgerMetadata()
	assert.Equal(t, inv.ID.String(), meta["invoice_id"])
	assert.Equal(t, "1000000001", meta["supplier_tpin"])
	assert.Equal(t, "2000000002", meta["buyer_tpin"])
}

func TestInvoice_Cancel(t *testing.T) {
	t.Run("PendingInvoice", func(t *testing.T) {
		inv := &Invoice{Status: shared.InvoiceStatusPending, UpdatedAt: time.Now().Add(-time.Hour)}
		before := inv.UpdatedAt

		require.NoError(t, inv.Cancel())
		assert.Equal(t, shared.InvoiceStatusCancelled, inv.Status)
		assert.True(t, inv.UpdatedAt.After(before))
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		inv := &Invoice{Status: shared.InvoiceStatusCancelled}
		assert.ErrorIs(t, inv.Cancel(), ErrAlreadyCancelled)
	})

	t.Run("Paid", func(t *testing.T) {
		inv := &Invoice{Status: shared.InvoiceStatusPaid}
		assert.ErrorIs(t, inv.Cancel(), ErrInvoicePaid)
		assert.Equal(t, shared.InvoiceStatusPaid, inv.Status)
	})
}

func TestInvoice_Snapshot(t *testing.T) {
	inv := &Invoice{
		ID:                 uuid.New(),
		SupplierTPIN:       "1000000001",
		BuyerTPIN:          "2000000002",
		VAT:                decimal.RequireFromString("16.5"),
		Amount:             decimal.NewFromInt(100),
		Status:             shared.InvoiceStatusPaid,
		Hash:               "abc",
		TxRef:              "def",
		RegistrationStatus: shared.RegistrationStatusRegistered,
	}

	snap := inv.Snapshot()
	assert.Equal(t, inv.ID, snap.ID)
	assert.Equal(t, "16.50", snap.VAT)
	assert.Equal(t, "100.00", snap.Amount)
	assert.Equal(t, "abc", snap.Hash)
	assert.Equal(t, "def", snap.TxRef)
	assert.Equal(t, shared.RegistrationStatusRegistered, snap.RegistrationStatus)
}

func TestErrInvoiceNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := ErrInvoiceNotFound{InvoiceID: id}

	assert.ErrorIs(t, err, ErrInvoiceNotFound{})
	assert.ErrorIs(t, err, ErrInvoiceNotFound{InvoiceID: id})
	assert.NotErrorIs(t, err, ErrInvoiceNotFound{InvoiceID: uuid.New()})
}
