// Package sweeper re-drives invoices whose ledger registration never completed,
// for example because the registration request was lost before reaching Kafka.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zra-invoice-integrity/internal/config"
	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/shared"
	"github.com/zra-invoice-integrity/internal/ledger_registrar/service"
)

// PendingInvoiceStore is the part of the invoice repository the sweeper needs
type PendingInvoiceStore interface {
	GetPendingRegistration(ctx context.Context, olderThan time.Time, limit int) ([]*invoice.Invoice, error)
	IncrementRegistrationAttempts(ctx context.Context, id uuid.UUID) (int, error)
	UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, status shared.RegistrationStatus) error
}

// Sweeper periodically registers invoices stuck in PENDING registration
type Sweeper struct {
	invoices            PendingInvoiceStore
	registrationService service.RegistrationService
	logger              *slog.Logger
	pollInterval        time.Duration
	batchSize           int
	maxRetryAttempts    int
	gracePeriod         time.Duration
	now                 func() time.Time
}

func NewSweeper(
	cfg *config.RegistrationConfig,
	invoices PendingInvoiceStore,
	registrationService service.RegistrationService,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		invoices:            invoices,
		registrationService: registrationService,
		logger:              logger,
		pollInterval:        cfg.PollingInterval,
		batchSize:           cfg.BatchSize,
		maxRetryAttempts:    cfg.MaxRetryAttempts,
		gracePeriod:         cfg.GracePeriod,
		now:                 time.Now,
	}
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting registration sweeper",
		"poll_interval", s.pollInterval.String(),
		"batch_size", s.batchSize,
		"max_retry_attempts", s.maxRetryAttempts,
		"grace_period", s.gracePeriod.String(),
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Registration sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Registration sweep failed", "error", err)
			}
		}
	}
}

// Sweep registers one batch of pending invoices and returns how many were registered
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.gracePeriod)
	pending, err := s.invoices.GetPendingRegistration(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get invoices pending registration: %w", err)
	}
	if len(pending) == 0 {
		s.logger.Debug("No invoices pending registration")
		return 0, nil
	}

	s.logger.Info("Found invoices pending registration", "count", len(pending))

	registered := 0
	for _, inv := range pending {
		if ctx.Err() != nil {
			return registered, ctx.Err()
		}
		if s.sweepOne(ctx, inv) {
			registered++
		}
	}
	return registered, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, inv *invoice.Invoice) bool {
	correlationID := uuid.NewString()
	logger := s.logger.With("correlation_id", correlationID, "invoice_id", inv.ID.String())

	attempts, err := s.invoices.IncrementRegistrationAttempts(ctx, inv.ID)
	if err != nil {
		logger.Error("Failed to increment registration attempts", "error", err)
		return false
	}

	result, err := s.registrationService.Register(ctx, &shared.RegistrationRequest{
		InvoiceID:     inv.ID,
		CorrelationID: correlationID,
		Source:        shared.RegistrationSourceSweeper,
		Timestamp:     s.now().UTC(),
	})
	if err != nil {
		logger.Error("Sweeper registration attempt failed", "attempts", attempts, "error", err)
		if attempts >= s.maxRetryAttempts {
			logger.Warn("Max registration attempts reached, marking invoice registration FAILED",
				"attempts", attempts,
				"failure_reason", string(shared.FailureReasonRetriesExhausted),
			)
			if updateErr := s.invoices.UpdateRegistrationStatus(ctx, inv.ID, shared.RegistrationStatusFailed); updateErr != nil {
				logger.Error("Failed to mark invoice registration FAILED", "error", updateErr)
			}
		}
		return false
	}

	switch result.Outcome {
	case service.OutcomeRegistered, service.OutcomeAdopted, service.OutcomeAlreadyRegistered:
		logger.Info("Sweeper registered invoice", "outcome", string(result.Outcome), "tx_ref", result.TxRef)
		return true
	default:
		logger.Warn("Sweeper registration rejected", "failure_reason", string(result.FailureReason))
		return false
	}
}
