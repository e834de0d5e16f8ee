package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/zra-invoice-integrity/internal/domain/shared"
)

// WorkerPoolRegistrationService bounds the number of registrations running at once
type WorkerPoolRegistrationService struct {
	baseService RegistrationService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

type registrationOutcome struct {
	result *Result
	err    error
}

func NewWorkerPoolRegistrationService(
	baseService RegistrationService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolRegistrationService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolRegistrationService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Register runs the registration on a pool worker and waits for it to finish
func (s *WorkerPoolRegistrationService) Register(ctx context.Context, request *shared.RegistrationRequest) (*Result, error) {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Debug("Submitting registration to worker pool", "invoice_id", request.InvoiceID.String())

	done := make(chan registrationOutcome, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		result, err := s.baseService.Register(ctx, &requestCopy)
		done <- registrationOutcome{result: result, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit registration to worker pool",
			"invoice_id", request.InvoiceID.String(),
			"error", err,
		)
		return nil, err
	}

	outcome := <-done
	return outcome.result, outcome.err
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolRegistrationService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolRegistrationService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolRegistrationService) Capacity() int {
	return s.pool.Cap()
}
