package shared

// InvoiceStatus defines the commercial state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// RegistrationStatus defines where an invoice is in the ledger registration flow
type RegistrationStatus string

const (
	RegistrationStatusPending    RegistrationStatus = "PENDING"
	RegistrationStatusRegistered RegistrationStatus = "REGISTERED"
	RegistrationStatusFailed     RegistrationStatus = "FAILED"
)

// FailureReason defines registration failure categories
type FailureReason string

const (
	FailureReasonInvoiceNotFound   FailureReason = "INVOICE_NOT_FOUND"
	FailureReasonHashFailed        FailureReason = "HASH_FAILED"
	FailureReasonLedgerUnavailable FailureReason = "LEDGER_UNAVAILABLE"
	FailureReasonCommitFailed      FailureReason = "COMMIT_FAILED"
	FailureReasonRetriesExhausted  FailureReason = "RETRIES_EXHAUSTED"
	FailureReasonHashConflict      FailureReason = "HASH_CONFLICT"
)
