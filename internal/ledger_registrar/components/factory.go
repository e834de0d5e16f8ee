package components

import (
	"log/slog"

	"github.com/zra-invoice-integrity/internal/config"
	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/domain/registration"
	"github.com/zra-invoice-integrity/internal/ledger_registrar/service"
	"github.com/zra-invoice-integrity/internal/platform/persistence"
)

// CreateRegistrationService builds the registration service, wrapped in a worker pool
// when one is configured. The returned function releases the pool.
func CreateRegistrationService(
	db persistence.TxBeginner,
	invoiceRepo invoice.Repository,
	ledgerStore ledger.Store,
	receiptRepo registration.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) (service.RegistrationService, func()) {
	baseService := service.NewRegistrationService(
		db,
		invoiceRepo,
		ledgerStore,
		receiptRepo,
		logger.With("component", "registration_service"),
	)

	if cfg.WorkerPool.Size <= 0 {
		logger.Warn("Worker pool disabled, registrations run on the consumer goroutine", "pool_size", cfg.WorkerPool.Size)
		return baseService, func() {}
	}

	workerPoolService, err := service.NewWorkerPoolRegistrationService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, func() {}
	}

	logger.Info("Created worker pool registration service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService.Shutdown
}
