package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zra-invoice-integrity/internal/config"
	"github.com/zra-invoice-integrity/internal/data/filestore"
	"github.com/zra-invoice-integrity/internal/data/mongo"
	"github.com/zra-invoice-integrity/internal/data/postgres"
	"github.com/zra-invoice-integrity/internal/ledger_registrar/components"
	"github.com/zra-invoice-integrity/internal/ledger_registrar/consumer"
	"github.com/zra-invoice-integrity/internal/ledger_registrar/sweeper"
	"github.com/zra-invoice-integrity/internal/logger"
	"github.com/zra-invoice-integrity/internal/platform/messaging/consumers"
	"github.com/zra-invoice-integrity/internal/platform/messaging/producers"
	"github.com/zra-invoice-integrity/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_registrar")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Registrar",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"ledger_path", cfg.Ledger.Path,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	invoiceRepo := postgres.NewInvoiceRepository(log, postgresDB)
	receiptRepo := mongo.NewReceiptRepository(log, mongoDB.Database())
	if err := receiptRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create receipt indexes", "error", err)
		os.Exit(1)
	}
	ledgerFile := filestore.NewLedger(cfg.Ledger.Path, log)

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	registrationService, releasePool := components.CreateRegistrationService(
		postgresDB.Pool(),
		invoiceRepo,
		ledgerFile,
		receiptRepo,
		log,
		cfg,
	)

	eventHandler := consumer.NewRegistrationEventHandler(log, registrationService, deadLetters)
	registrationSweeper := sweeper.NewSweeper(&cfg.Registration, invoiceRepo, registrationService, log.With("component", "sweeper"))

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.RegistrationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.RegistrationTopic, cfg.Kafka.ConsumerGroup, eventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		registrationSweeper.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// The pool is released after the consumer and sweeper stop submitting work
	releasePool()

	var shutdownErr error
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serviceErr != nil {
		log.Error("Ledger Registrar shutdown with errors", "error", serviceErr)
	}
	if shutdownErr != nil {
		log.Error("Ledger Registrar shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Ledger Registrar shutdown completed successfully")
}
