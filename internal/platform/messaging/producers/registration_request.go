package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/zra-invoice-integrity/internal/config"
)

// RegistrationRequestProducer publishes invoice registration requests for the ledger registrar
type RegistrationRequestProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewRegistrationRequestProducer creates the producer and ensures the registration topic exists
func NewRegistrationRequestProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*RegistrationRequestProducer, error) {
	if cfg.RegistrationTopic == "" {
		return nil, fmt.Errorf("kafka registration topic is not configured")
	}

	if err := ensureTopic(cfg.Brokers, cfg.RegistrationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure registration topic %s exists: %w", cfg.RegistrationTopic, err)
	}

	// Invoice ids are the message keys so every request for one invoice lands on one partition.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.RegistrationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write registration requests asynchronously", "topic", cfg.RegistrationTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Wrote registration requests asynchronously", "topic", cfg.RegistrationTopic, "count", len(messages))
			}
		},
	}

	return &RegistrationRequestProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.RegistrationTopic,
	}, nil
}

// Publish marshals value as JSON and writes it under key
func (p *RegistrationRequestProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal registration request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish registration request",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish registration request to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published registration request",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *RegistrationRequestProducer) Close() error {
	p.logger.Info("Closing registration request producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
