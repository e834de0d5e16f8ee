package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMissingInvoiceID = errors.New("registration request has no invoice id")

// Registration request origins
const (
	RegistrationSourceAPI     = "api"
	RegistrationSourceSweeper = "sweeper"
)

// RegistrationRequest defines a Kafka message asking the registrar to anchor an
// invoice in the ledger
type RegistrationRequest struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	CorrelationID string    `json:"correlation_id"`
	Source        string    `json:"source,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Validate checks the fields the registrar relies on
func (r *RegistrationRequest) Validate() error {
	if r.InvoiceID == uuid.Nil {
		return ErrMissingInvoiceID
	}
	return nil
}
