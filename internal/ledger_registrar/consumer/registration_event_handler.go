package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zra-invoice-integrity/internal/domain/shared"
	"github.com/zra-invoice-integrity/internal/ledger_registrar/service"
	"github.com/zra-invoice-integrity/internal/platform/messaging/producers"
)

// RegistrationEventHandler handles registration request messages from Kafka
type RegistrationEventHandler struct {
	registrationService service.RegistrationService
	producer            producers.DeadLetterPublisher
	logger              *slog.Logger
}

// NewRegistrationEventHandler creates a new handler. producer may be nil when the
// DLQ is disabled.
func NewRegistrationEventHandler(
	logger *slog.Logger,
	registrationService service.RegistrationService,
	producer producers.DeadLetterPublisher,
) *RegistrationEventHandler {
	return &RegistrationEventHandler{
		registrationService: registrationService,
		producer:            producer,
		logger:              logger,
	}
}

// HandleMessage processes one Kafka message. A nil return commits the offset.
func (h *RegistrationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.RegistrationRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal registration request", err)
	}
	if err := request.Validate(); err != nil {
		return h.deadLetter(ctx, key, value, "Invalid registration request", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received registration request", "invoice_id", request.InvoiceID.String(), "source", request.Source)

	result, err := h.registrationService.Register(ctx, &request)
	if err != nil {
		logger.Error("Failed to register invoice", "invoice_id", request.InvoiceID.String(), "error", err)
		return fmt.Errorf("registering invoice %s failed: %w", request.InvoiceID.String(), err)
	}

	logger.Info("Registration request handled",
		"invoice_id", request.InvoiceID.String(),
		"outcome", string(result.Outcome),
		"failure_reason", string(result.FailureReason),
	)
	return nil
}

func (h *RegistrationEventHandler) deadLetter(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key))

	if h.producer != nil {
		reason := fmt.Sprintf("%s: %s", msg, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			return nil
		}
	}

	return fmt.Errorf("%s: %w", msg, cause)
}
