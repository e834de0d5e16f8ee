package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/registration"
	"github.com/zra-invoice-integrity/internal/domain/verification"
)

// InvoiceService defines the interface for invoice operations
type InvoiceService interface {
	// CreateInvoice issues an invoice and requests its ledger registration.
	// Returns ErrDuplicateInvoice if an identical invoice exists.
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*invoice.Invoice, error)

	// GetInvoice returns ErrInvoiceNotFound if the invoice doesn't exist
	GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)

	// ListInvoices returns one page of invoices, newest first, and the total count
	ListInvoices(ctx context.Context, page, perPage int) ([]*invoice.Invoice, int64, error)

	CancelInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)

	// InvoiceQR renders the invoice QR code as png or svg
	InvoiceQR(ctx context.Context, id uuid.UUID, format string) (*QRImage, error)

	// RegistrationReceipt returns ErrReceiptNotFound until the registrar has recorded one
	RegistrationReceipt(ctx context.Context, id uuid.UUID) (*registration.Receipt, error)
}

// Verifier checks invoices against the ledger
type Verifier interface {
	VerifyByID(ctx context.Context, invoiceID string) (verification.Verdict, error)
	VerifyByQR(ctx context.Context, payloadText string) (verification.Verdict, error)
}

// CreateInvoiceInput carries the fields of a new invoice
type CreateInvoiceInput struct {
	SupplierTPIN  string
	BuyerTPIN     string
	VAT           decimal.Decimal
	Amount        decimal.Decimal
	CorrelationID string
}

// QRImage is a rendered invoice QR code together with the text it encodes
type QRImage struct {
	Payload     string
	ContentType string
	Image       []byte
}
