package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/domain/registration"
	"github.com/zra-invoice-integrity/internal/domain/shared"
	"github.com/zra-invoice-integrity/internal/hasher"
	"github.com/zra-invoice-integrity/internal/platform/persistence"
)

// RegistrationError is a retryable registration failure
type RegistrationError struct {
	InvoiceID string
	Reason    shared.FailureReason
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration of invoice %s failed (%s): %v", e.InvoiceID, e.Reason, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

type RegistrationServiceImpl struct {
	db       persistence.TxBeginner
	invoices invoice.Repository
	ledger   ledger.Store
	receipts registration.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistrationService wires the registration flow. receipts may be nil, in which
// case no read model is maintained.
func NewRegistrationService(
	db persistence.TxBeginner,
	invoices invoice.Repository,
	ledgerStore ledger.Store,
	receipts registration.Repository,
	logger *slog.Logger,
) *RegistrationServiceImpl {
	return &RegistrationServiceImpl{
		db:       db,
		invoices: invoices,
		ledger:   ledgerStore,
		receipts: receipts,
		logger:   logger,
		now:      time.Now,
	}
}

// Register hashes the invoice, appends the hash to the ledger and stores the ledger
// reference on the invoice, all under the invoice row lock. A nil error means the
// request can be acknowledged; the Result says what happened.
func (s *RegistrationServiceImpl) Register(ctx context.Context, request *shared.RegistrationRequest) (*Result, error) {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	invoiceID := request.InvoiceID.String()
	if err := request.Validate(); err != nil {
		logger.Warn("Rejecting invalid registration request", "error", err)
		return &Result{InvoiceID: invoiceID, Outcome: OutcomeRejected, FailureReason: shared.FailureReasonInvoiceNotFound}, nil
	}

	logger = logger.With("invoice_id", invoiceID)
	logger.Info("Registering invoice", "source", request.Source)

	var result *Result
	ledgerWritten := false

	err := persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.invoices.WithTx(tx)

		inv, err := repo.LockForUpdate(ctx, request.InvoiceID)
		if err != nil {
			if errors.Is(err, invoice.ErrInvoiceNotFound{}) {
				logger.Warn("Invoice not found, acknowledging registration request")
				result = &Result{InvoiceID: invoiceID, Outcome: OutcomeRejected, FailureReason: shared.FailureReasonInvoiceNotFound}
				return nil
			}
			return &RegistrationError{InvoiceID: invoiceID, Reason: shared.FailureReasonCommitFailed, Err: err}
		}

		if inv.RegistrationStatus == shared.RegistrationStatusRegistered && inv.IsRegistered() {
			logger.Info("Invoice already registered, skipping", "tx_ref", inv.TxRef)
			result = &Result{InvoiceID: invoiceID, Outcome: OutcomeAlreadyRegistered, Hash: inv.Hash, TxRef: inv.TxRef}
			return nil
		}

		hash, err := hasher.Hash(inv.HashPayload())
		if err != nil {
			logger.Error("Failed to hash invoice", "error", err)
			if updateErr := repo.UpdateRegistrationStatus(ctx, inv.ID, shared.RegistrationStatusFailed); updateErr != nil {
				return &RegistrationError{InvoiceID: invoiceID, Reason: shared.FailureReasonCommitFailed, Err: updateErr}
			}
			result = &Result{InvoiceID: invoiceID, Outcome: OutcomeRejected, FailureReason: shared.FailureReasonHashFailed}
			return nil
		}

		record, adopted, err := s.recordInLedger(inv, hash, logger)
		if errors.Is(err, errHashOwnedByOtherInvoice) {
			if updateErr := repo.UpdateRegistrationStatus(ctx, inv.ID, shared.RegistrationStatusFailed); updateErr != nil {
				return &RegistrationError{InvoiceID: invoiceID, Reason: shared.FailureReasonCommitFailed, Err: updateErr}
			}
			result = &Result{InvoiceID: invoiceID, Outcome: OutcomeRejected, Hash: hash, FailureReason: shared.FailureReasonHashConflict}
			return nil
		}
		if err != nil {
			return &RegistrationError{InvoiceID: invoiceID, Reason: shared.FailureReasonLedgerUnavailable, Err: err}
		}
		ledgerWritten = true

		registeredAt, err := record.RecordedAt()
		if err != nil {
			registeredAt = s.now().UTC()
		}
		if err := repo.MarkRegistered(ctx, inv.ID, hash, record.TxRef, registeredAt); err != nil {
			return &RegistrationError{InvoiceID: invoiceID, Reason: shared.FailureReasonCommitFailed, Err: err}
		}

		outcome := OutcomeRegistered
		if adopted {
			outcome = OutcomeAdopted
		}
		result = &Result{
			InvoiceID: invoiceID,
			Outcome:   outcome,
			Hash:      hash,
			TxRef:     record.TxRef,
			Timestamp: record.Timestamp,
		}
		return nil
	})
	if err != nil {
		var regErr *RegistrationError
		if !errors.As(err, &regErr) {
			reason := shared.FailureReasonCommitFailed
			if !ledgerWritten {
				reason = shared.FailureReasonLedgerUnavailable
			}
			err = &RegistrationError{InvoiceID: invoiceID, Reason: reason, Err: err}
		}
		logger.Error("Invoice registration failed", "error", err)
		return nil, err
	}

	if result.Outcome == OutcomeRegistered || result.Outcome == OutcomeAdopted {
		logger.Info("Invoice registered in ledger", "hash", result.Hash, "tx_ref", result.TxRef, "outcome", string(result.Outcome))
		s.recordReceipt(ctx, request, result, logger)
	}

	return result, nil
}

// errHashOwnedByOtherInvoice means the ledger already anchors this content for a
// different invoice. Appending again would leave this invoice unverifiable, since
// lookups resolve the first record for a hash.
var errHashOwnedByOtherInvoice = errors.New("hash already recorded for another invoice")

// recordInLedger reuses a record this invoice already appended (a previous attempt
// that failed to commit) or appends a new one.
func (s *RegistrationServiceImpl) recordInLedger(inv *invoice.Invoice, hash string, logger *slog.Logger) (*ledger.Record, bool, error) {
	existing, err := s.ledger.Lookup(hash)
	switch {
	case err == nil:
		if existing.MetadataString("invoice_id") == inv.ID.String() {
			logger.Info("Adopting existing ledger record", "tx_ref", existing.TxRef)
			return existing, true, nil
		}
		logger.Warn("Hash already recorded for another invoice, rejecting registration",
			"other_invoice_id", existing.MetadataString("invoice_id"),
			"tx_ref", existing.TxRef,
		)
		return nil, false, errHashOwnedByOtherInvoice
	case errors.Is(err, ledger.ErrRecordNotFound{}):
	default:
		return nil, false, err
	}

	record, err := s.ledger.Append(hash, inv.LedgerMetadata())
	if err != nil {
		return nil, false, err
	}
	return record, false, nil
}

func (s *RegistrationServiceImpl) recordReceipt(ctx context.Context, request *shared.RegistrationRequest, result *Result, logger *slog.Logger) {
	if s.receipts == nil {
		return
	}

	receipt := &registration.Receipt{
		InvoiceID:     result.InvoiceID,
		Hash:          result.Hash,
		TxRef:         result.TxRef,
		Network:       registration.Network,
		Status:        registration.StatusConfirmed,
		Timestamp:     result.Timestamp,
		CorrelationID: request.CorrelationID,
		RecordedAt:    s.now().UTC(),
	}
	if err := s.receipts.Upsert(ctx, receipt); err != nil {
		logger.Error("Failed to store registration receipt", "error", err)
	}
}
