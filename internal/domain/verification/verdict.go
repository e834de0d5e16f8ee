// Package verification defines the outcome of checking an invoice against the ledger.
package verification

import (
	"github.com/zra-invoice-integrity/internal/domain/invoice"
)

// Reason is the failure code of an invalid verdict
type Reason string

const (
	ReasonInvoiceNotFound      Reason = "INVOICE_NOT_FOUND"
	ReasonNotRegistered        Reason = "NOT_REGISTERED"
	ReasonHashNotInLedger      Reason = "HASH_NOT_IN_LEDGER"
	ReasonTxRefMismatch        Reason = "TX_REF_MISMATCH"
	ReasonMalformedQR          Reason = "MALFORMED_QR"
	ReasonWrongQRType          Reason = "WRONG_QR_TYPE"
	ReasonUnsupportedQRVersion Reason = "UNSUPPORTED_QR_VERSION"
	ReasonIncompleteQR         Reason = "INCOMPLETE_QR"
	ReasonHashMismatch         Reason = "HASH_MISMATCH"
)

// Category groups reasons into the error families callers report on
type Category string

const (
	CategoryValidation Category = "VALIDATION"
	CategoryNotFound   Category = "NOT_FOUND"
	CategoryIntegrity  Category = "INTEGRITY"
)

var reasonCategories = map[Reason]Category{
	ReasonMalformedQR:          CategoryValidation,
	ReasonWrongQRType:          CategoryValidation,
	ReasonUnsupportedQRVersion: CategoryValidation,
	ReasonIncompleteQR:         CategoryValidation,
	ReasonInvoiceNotFound:      CategoryNotFound,
	ReasonNotRegistered:        CategoryNotFound,
	ReasonHashNotInLedger:      CategoryNotFound,
	ReasonTxRefMismatch:        CategoryIntegrity,
	ReasonHashMismatch:         CategoryIntegrity,
}

var reasonMessages = map[Reason]string{
	ReasonInvoiceNotFound:      "Invoice not found",
	ReasonNotRegistered:        "Invoice not registered on the ledger",
	ReasonHashNotInLedger:      "Invoice hash not found in the ledger",
	ReasonTxRefMismatch:        "Transaction reference mismatch",
	ReasonMalformedQR:          "QR payload is not valid JSON",
	ReasonWrongQRType:          "QR code is not a ZRA invoice code",
	ReasonUnsupportedQRVersion: "QR code version is not supported",
	ReasonIncompleteQR:         "QR payload is missing required fields",
	ReasonHashMismatch:         "QR hash does not match the invoice",
}

// Category returns the error family of the reason
func (r Reason) Category() Category {
	return reasonCategories[r]
}

// Message returns the default human readable text for the reason
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Verdict is the result of one verification call. It is never persisted.
type Verdict struct {
	Valid   bool              `json:"valid"`
	Reason  Reason            `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
	Invoice *invoice.Snapshot `json:"invoice,omitempty"`
}

// Valid returns a passing verdict echoing the checked invoice
func Valid(snapshot *invoice.Snapshot) Verdict {
	return Verdict{Valid: true, Message: "Invoice is authentic", Invoice: snapshot}
}

// Invalid returns a failing verdict with the default message of reason
func Invalid(reason Reason, snapshot *invoice.Snapshot) Verdict {
	return Verdict{Reason: reason, Message: reason.Message(), Invoice: snapshot}
}

// Category returns the error family of a failing verdict, or "" when valid
func (v Verdict) Category() Category {
	if v.Valid {
		return ""
	}
	return v.Reason.Category()
}
