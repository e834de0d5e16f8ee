package verification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zra-invoice-integrity/internal/domain/invoice"
)

func TestReason_CategoryAndMessage(t *testing.T) {
	testCases := []struct {
		reason   Reason
		category Category
	}{
		{ReasonMalformedQR, CategoryValidation},
		{ReasonWrongQRType, CategoryValidation},
		{ReasonUnsupportedQRVersion, CategoryValidation},
		{ReasonIncompleteQR, CategoryValidation},
		{ReasonInvoiceNotFound, CategoryNotFound},
		{ReasonNotRegistered, CategoryNotFound},
		{ReasonHashNotInLedger, CategoryNotFound},
		{ReasonTxRefMismatch, CategoryIntegrity},
		{ReasonHashMismatch, CategoryIntegrity},
	}

	for _, tc := range testCases {
		t.Run(string(tc.reason), func(t *testing.T) {
			assert.Equal(t, tc.category, tc.reason.Category())
			assert.NotEmpty(t, tc.reason.Message())
		})
	}
}

func TestVerdict_Constructors(t *testing.T) {
	snap := &invoice.Snapshot{SupplierTPIN: "1000000001"}

	valid := Valid(snap)
	assert.True(t, valid.Valid)
	assert.Empty(t, valid.Reason)
	assert.Empty(t, valid.Category())
	assert.Same(t, snap, valid.Invoice)

	invalid := Invalid(ReasonTxRefMismatch, snap)
	assert.False(t, invalid.Valid)
	assert.Equal(t, ReasonTxRefMismatch, invalid.Reason)
	assert.Equal(t, CategoryIntegrity, invalid.Category())
	assert.Equal(t, "Transaction reference mismatch", invalid.Message)
}

func TestVerdict_JSON(t *testing.T) {
	out, err := json.Marshal(Invalid(ReasonMalformedQR, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false,"reason":"MALFORMED_QR","message":"QR payload is not valid JSON"}`, string(out))
}
