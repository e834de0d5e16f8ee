package invoice

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zra-invoice-integrity/internal/domain/shared"
)

// Common errors
var (
	ErrInvalidSupplierTPIN = errors.New("supplier TPIN must be exactly 10 digits")
	ErrInvalidBuyerTPIN    = errors.New("buyer TPIN must be exactly 10 digits")
	ErrNegativeVAT         = errors.New("vat cannot be negative")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAlreadyCancelled    = errors.New("invoice is already cancelled")
	ErrInvoicePaid         = errors.New("paid invoice cannot be cancelled")
)

var tpinPattern = regexp.MustCompile(`^[0-9]{10}$`)

// MoneyScale is the number of decimal places money is stored and hashed with
const MoneyScale = 2

// Invoice is an issued tax invoice together with its ledger registration state
type Invoice struct {
	ID                   uuid.UUID                 `json:"id"`
	SupplierTPIN         string                    `json:"supplier_tpin"`
	BuyerTPIN            string                    `json:"buyer_tpin"`
	VAT                  decimal.Decimal           `json:"vat"`
	Amount               decimal.Decimal           `json:"amount"`
	Status               shared.InvoiceStatus      `json:"status"`
	Hash                 string                    `json:"hash,omitempty"`
	TxRef                string                    `json:"tx_ref,omitempty"`
	RegistrationStatus   shared.RegistrationStatus `json:"registration_status"`
	RegistrationAttempts int                       `json:"registration_attempts"`
	RegisteredAt         *time.Time                `json:"registered_at,omitempty"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
}

// IsValidTPIN reports whether tpin is exactly ten ASCII digits
func IsValidTPIN(tpin string) bool {
	return tpinPattern.MatchString(tpin)
}

// NewInvoice creates a pending, unregistered invoice. Money is rounded to MoneyScale.
func NewInvoice(supplierTPIN, buyerTPIN string, vat, amount decimal.Decimal) (*Invoice, error) {
	supplierTPIN = strings.TrimSpace(supplierTPIN)
	buyerTPIN = strings.TrimSpace(buyerTPIN)

	if !IsValidTPIN(supplierTPIN) {
		return nil, ErrInvalidSupplierTPIN
	}
	if !IsValidTPIN(buyerTPIN) {
		return nil, ErrInvalidBuyerTPIN
	}

	vat = vat.Round(MoneyScale)
	amount = amount.Round(MoneyScale)

	if vat.IsNegative() {
		return nil, ErrNegativeVAT
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Invoice{
		ID:                 uuid.New(),
		SupplierTPIN:       supplierTPIN,
		BuyerTPIN:          buyerTPIN,
		VAT:                vat,
		Amount:             amount,
		Status:             shared.InvoiceStatusPending,
		RegistrationStatus: shared.RegistrationStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// HashPayload returns the fields protected by the ledger hash. Money is rendered
// with a fixed two-digit scale so the same amount always hashes the same way.
func (i *Invoice) HashPayload() map[string]any {
	return map[string]any{
		"supplier_tpin": i.SupplierTPIN,
		"buyer_tpin":    i.BuyerTPIN,
		"vat":           json.Number(i.VAT.StringFixed(MoneyScale)),
		"amount":        json.Number(i.Amount.StringFixed(MoneyScale)),
	}
}

// LedgerMetadata is stored next to the hash in the ledger
func (i *Invoice) LedgerMetadata() map[string]any {
	return map[string]any{
		"invoice_id":    i.ID.String(),
		"supplier_tpin": i.SupplierTPIN,
		"buyer_tpin":    i.BuyerTPIN,
	}
}

// IsRegistered reports whether the invoice carries a ledger hash
func (i *Invoice) IsRegistered() bool {
	return i.Hash != ""
}

// Cancel moves the invoice to CANCELLED. Registration is unaffected: a cancelled
// invoice still verifies against the ledger.
func (i *Invoice) Cancel() error {
	switch i.Status {
	case shared.InvoiceStatusCancelled:
		return ErrAlreadyCancelled
	case shared.InvoiceStatusPaid:
		return ErrInvoicePaid
	}

	i.Status = shared.InvoiceStatusCancelled
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// Snapshot is the public view of an invoice echoed by verification
type Snapshot struct {
	ID                 uuid.UUID                 `json:"id"`
	SupplierTPIN       string                    `json:"supplier_tpin"`
	BuyerTPIN          string                    `json:"buyer_tpin"`
	VAT                string                    `json:"vat"`
	Amount             string                    `json:"amount"`
	Status             shared.InvoiceStatus      `json:"status"`
	Hash               string                    `json:"hash,omitempty"`
	TxRef              string                    `json:"tx_ref,omitempty"`
	RegistrationStatus shared.RegistrationStatus `json:"registration_status"`
	CreatedAt          time.Time                 `json:"created_at"`
}

// Snapshot returns the public fields of the invoice
func (i *Invoice) Snapshot() *Snapshot {
	return &Snapshot{
		ID:                 i.ID,
		SupplierTPIN:       i.SupplierTPIN,
		BuyerTPIN:          i.BuyerTPIN,
		VAT:                i.VAT.StringFixed(MoneyScale),
		Amount:             i.Amount.StringFixed(MoneyScale),
		Status:             i.Status,
		Hash:               i.Hash,
		TxRef:              i.TxRef,
		RegistrationStatus: i.RegistrationStatus,
		CreatedAt:          i.CreatedAt,
	}
}
