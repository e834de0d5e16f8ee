package handler

import (
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest represents a request to issue a new invoice. Money accepts
// JSON numbers or decimal strings.
type CreateInvoiceRequest struct {
	SupplierTPIN string           `json:"supplier_tpin" binding:"required"`
	BuyerTPIN    string           `json:"buyer_tpin" binding:"required"`
	VAT          *decimal.Decimal `json:"vat" binding:"required"`
	Amount       *decimal.Decimal `json:"amount" binding:"required"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                   string `json:"id"`
	SupplierTPIN         string `json:"supplier_tpin"`
	BuyerTPIN            string `json:"buyer_tpin"`
	VAT                  string `json:"vat"`
	Amount               string `json:"amount"`
	Status               string `json:"status"`
	Hash                 string `json:"hash,omitempty"`
	TxRef                string `json:"tx_ref,omitempty"`
	RegistrationStatus   string `json:"registration_status"`
	RegistrationAttempts int    `json:"registration_attempts"`
	RegisteredAt         string `json:"registered_at,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// InvoiceListResponse represents a page of invoices in API responses
type InvoiceListResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
}

// QRCodeResponse is returned when the QR image is requested as a data URI
type QRCodeResponse struct {
	InvoiceID string `json:"invoice_id"`
	Format    string `json:"format"`
	Payload   string `json:"payload"`
	DataURI   string `json:"data_uri"`
}

// ReceiptResponse represents a ledger registration receipt
type ReceiptResponse struct {
	InvoiceID  string `json:"invoice_id"`
	Hash       string `json:"hash"`
	TxRef      string `json:"tx_ref"`
	Network    string `json:"network"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	RecordedAt string `json:"recorded_at"`
}

// VerifyRequest asks for verification of a stored invoice
type VerifyRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required"`
}

// VerifyQRRequest carries the text decoded from a scanned QR code
type VerifyQRRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

// VerificationResponse is the verdict of a verification call. Reason is one of
// INVOICE_NOT_FOUND, NOT_REGISTERED, HASH_NOT_IN_LEDGER, TX_REF_MISMATCH,
// MALFORMED_QR, WRONG_QR_TYPE, UNSUPPORTED_QR_VERSION, INCOMPLETE_QR or
// HASH_MISMATCH. UNSUPPORTED_QR_VERSION is returned for an invoice QR whose
// version this service cannot read, so clients should expect it alongside
// MALFORMED_QR.
type VerificationResponse struct {
	Valid    bool        `json:"valid"`
	Reason   string      `json:"reason,omitempty"`
	Category string      `json:"category,omitempty"`
	Message  string      `json:"message"`
	Invoice  interface{} `json:"invoice,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
