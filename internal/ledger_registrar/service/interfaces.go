package service

import (
	"context"

	"github.com/zra-invoice-integrity/internal/domain/shared"
)

// RegistrationService anchors invoices in the ledger
type RegistrationService interface {
	Register(ctx context.Context, request *shared.RegistrationRequest) (*Result, error)
}

// Outcome describes what a registration attempt did
type Outcome string

const (
	OutcomeRegistered        Outcome = "REGISTERED"         // a new ledger record was appended
	OutcomeAdopted           Outcome = "ADOPTED"            // an earlier record for this invoice was reused
	OutcomeAlreadyRegistered Outcome = "ALREADY_REGISTERED" // nothing to do
	OutcomeRejected          Outcome = "REJECTED"           // permanent failure, message acknowledged
)

// Result is returned for every acknowledged registration request
type Result struct {
	InvoiceID     string
	Outcome       Outcome
	Hash          string
	TxRef         string
	Timestamp     string
	FailureReason shared.FailureReason
}
