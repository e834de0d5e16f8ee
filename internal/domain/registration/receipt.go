// Package registration holds the read model describing how an invoice was anchored
// in the ledger.
package registration

import (
	"context"
	"time"
)

// Network names the ledger an invoice was registered on
const Network = "local-ledger"

// StatusConfirmed marks a receipt whose ledger record was written and committed
const StatusConfirmed = "CONFIRMED"

// Receipt records the outcome of one invoice registration. It is a read model: the
// ledger file stays the source of truth and verification never consults receipts.
type Receipt struct {
	InvoiceID     string    `json:"invoice_id" bson:"invoice_id"`
	Hash          string    `json:"hash" bson:"hash"`
	TxRef         string    `json:"tx_ref" bson:"tx_ref"`
	Network       string    `json:"network" bson:"network"`
	Status        string    `json:"status" bson:"status"`
	Timestamp     string    `json:"timestamp" bson:"timestamp"` // ledger record timestamp
	CorrelationID string    `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	RecordedAt    time.Time `json:"recorded_at" bson:"recorded_at"`
}

// Repository manages receipt persistence
type Repository interface {
	// Upsert stores the receipt, replacing any earlier receipt for the same invoice
	Upsert(ctx context.Context, receipt *Receipt) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Receipt, error)
}

// ErrReceiptNotFound indicates that no receipt exists for the invoice
type ErrReceiptNotFound struct {
	InvoiceID string
}

func (e ErrReceiptNotFound) Error() string {
	return "registration receipt not found: " + e.InvoiceID
}

// Is implements the errors.Is interface for ErrReceiptNotFound
func (e ErrReceiptNotFound) Is(target error) bool {
	t, ok := target.(ErrReceiptNotFound)
	if !ok {
		return false
	}
	return t.InvoiceID == "" || e.InvoiceID == t.InvoiceID
}
