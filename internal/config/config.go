// Package config provides configuration structures and validation for the invoice
// integrity services. It covers the HTTP server, the invoice database, the receipt
// store, the registration message flow, the ledger file and QR rendering.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Registration RegistrationConfig
	WorkerPool   WorkerPoolConfig
	Ledger       LedgerConfig
	QR           QRConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int           // Port to listen on
	ShutdownTimeout    time.Duration // Grace period for server shutdown
	ReadTimeout        time.Duration // Maximum duration for reading entire request
	WriteTimeout       time.Duration // Maximum duration for writing response
	IdleTimeout        time.Duration // Maximum duration to wait for next request
	CORSAllowedOrigins []string      // Browser origins allowed to call the API
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	RegistrationTopic string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for unprocessable registration requests
}

// PostgresConfig contains PostgreSQL configuration for the invoice store
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration for registration receipts
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RegistrationConfig controls the sweeper that re-drives invoices whose ledger
// registration is still pending.
type RegistrationConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
	GracePeriod      time.Duration // Minimum invoice age before the sweeper picks it up
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// LedgerConfig points at the append-only ledger file
type LedgerConfig struct {
	Path string
}

// QRConfig controls QR code rendering
type QRConfig struct {
	ErrorCorrection string // low, medium, high or highest
	ImageSize       int    // PNG edge length in pixels
}

// validate performs validation of all configuration values, ensuring they meet
// minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.RegistrationTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_REGISTRATION_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.Registration.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "REGISTRATION_POLLING_INTERVAL must be greater than 0")
	}
	if c.Registration.BatchSize <= 0 {
		validationErrors = append(validationErrors, "REGISTRATION_BATCH_SIZE must be greater than 0")
	}
	if c.Registration.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "REGISTRATION_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Registration.GracePeriod < 0 {
		validationErrors = append(validationErrors, "REGISTRATION_GRACE_PERIOD must not be negative")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if c.Ledger.Path == "" {
		validationErrors = append(validationErrors, "LEDGER_PATH is required")
	}

	switch strings.ToLower(c.QR.ErrorCorrection) {
	case "low", "medium", "high", "highest":
	default:
		validationErrors = append(validationErrors, "QR_ERROR_CORRECTION must be one of low, medium, high, highest")
	}
	if c.QR.ImageSize < 21 {
		validationErrors = append(validationErrors, "QR_IMAGE_SIZE must be at least 21 pixels")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
