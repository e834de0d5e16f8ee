package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zra-invoice-integrity/internal/api_gateway"
	"github.com/zra-invoice-integrity/internal/api_gateway/handler"
	"github.com/zra-invoice-integrity/internal/api_gateway/service"
	"github.com/zra-invoice-integrity/internal/config"
	"github.com/zra-invoice-integrity/internal/data/filestore"
	"github.com/zra-invoice-integrity/internal/data/mongo"
	"github.com/zra-invoice-integrity/internal/data/postgres"
	"github.com/zra-invoice-integrity/internal/logger"
	"github.com/zra-invoice-integrity/internal/platform/messaging/producers"
	"github.com/zra-invoice-integrity/internal/platform/persistence"
	"github.com/zra-invoice-integrity/internal/qrcodec"
	"github.com/zra-invoice-integrity/internal/verification"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

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

	kafkaProducer, err := producers.NewRegistrationRequestProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize registration request producer", "error", err)
		os.Exit(1)
	}

	codec, err := qrcodec.New(cfg.QR)
	if err != nil {
		log.Error("Failed to initialize QR codec", "error", err)
		os.Exit(1)
	}

	invoiceRepo := postgres.NewInvoiceRepository(log, postgresDB)
	receiptRepo := mongo.NewReceiptRepository(log, mongoDB.Database())
	ledgerFile := filestore.NewLedger(cfg.Ledger.Path, log)

	invoiceService := service.NewInvoiceService(log, invoiceRepo, receiptRepo, kafkaProducer, codec)
	verifier := verification.NewEngine(invoiceRepo, ledgerFile, codec, log)

	server := api_gateway.NewServer(log, cfg, api_gateway.Dependencies{
		Invoices: invoiceService,
		Verifier: verifier,
		HealthChecks: map[string]handler.Pinger{
			"postgres": postgresDB,
			"mongodb":  mongoDB,
		},
	})
	log.Info("REST server initialized", "ledger_path", ledgerFile.Path())

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain HTTP first so no request is left without its database
	shutdownErr := server.Stop(shutdownCtx)
	if shutdownErr != nil {
		log.Error("Error during server shutdown", "error", shutdownErr)
	}

	if err := kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
