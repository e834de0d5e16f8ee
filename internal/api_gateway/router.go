package api_gateway

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/zra-invoice-integrity/internal/api_gateway/handler"
	"github.com/zra-invoice-integrity/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	invoiceHandler *handler.InvoiceHandler,
	verificationHandler *handler.VerificationHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", invoiceHandler.Create)
			invoices.GET("", invoiceHandler.List)

			// Verification reads the ledger, never the receipt store
			invoices.POST("/verify", verificationHandler.VerifyByID)
			invoices.POST("/verify-qr", verificationHandler.VerifyByQR)

			invoices.GET("/:id", invoiceHandler.GetByID)
			invoices.PATCH("/:id/cancel", invoiceHandler.Cancel)
			invoices.GET("/:id/qr", invoiceHandler.QRCode)
			invoices.GET("/:id/registration", invoiceHandler.Registration)
		}
	}

	r.GET("/health", healthHandler.Health)
}
