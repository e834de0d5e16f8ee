package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zra-invoice-integrity/internal/domain/shared"
)

// Repository defines invoice persistence operations
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindDuplicate returns an existing invoice with the same parties and money, or nil
	FindDuplicate(ctx context.Context, supplierTPIN, buyerTPIN string, vat, amount decimal.Decimal) (*Invoice, error)

	List(ctx context.Context, limit, offset int) ([]*Invoice, error)
	Count(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status shared.InvoiceStatus) error

	// MarkRegistered stores the ledger hash and reference and flips the registration status
	MarkRegistered(ctx context.Context, id uuid.UUID, hash, txRef string, registeredAt time.Time) error

	// GetPendingRegistration returns invoices still waiting for the ledger that were
	// created before olderThan, oldest first
	GetPendingRegistration(ctx context.Context, olderThan time.Time, limit int) ([]*Invoice, error)
	IncrementRegistrationAttempts(ctx context.Context, id uuid.UUID) (int, error)
	UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, status shared.RegistrationStatus) error

	// LockForUpdate acquires a row lock for the registration transaction
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrInvoiceNotFound indicates missing invoice
type ErrInvoiceNotFound struct {
	InvoiceID uuid.UUID
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found: " + e.InvoiceID.String()
}

// Is implements the errors.Is interface for ErrInvoiceNotFound
func (e ErrInvoiceNotFound) Is(target error) bool {
	t, ok := target.(ErrInvoiceNotFound)
	if !ok {
		return false
	}
	if t.InvoiceID == uuid.Nil {
		return true
	}
	return e.InvoiceID == t.InvoiceID
}

// ErrDuplicateInvoice indicates that an identical invoice was already issued.
// ExistingID is uuid.Nil when the store could not name the earlier invoice.
type ErrDuplicateInvoice struct {
	ExistingID uuid.UUID
}

func (e ErrDuplicateInvoice) Error() string {
	if e.ExistingID == uuid.Nil {
		return "duplicate invoice"
	}
	return "duplicate invoice, already issued as " + e.ExistingID.String()
}
