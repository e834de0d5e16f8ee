package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/zra-invoice-integrity/internal/api_gateway/service"
	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/domain/verification"
)

// VerificationHandler answers verification requests. A verdict, valid or not, is
// always a 200; only failures to read the invoice store or the ledger are errors.
type VerificationHandler struct {
	verifier service.Verifier
	logger   *slog.Logger
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(logger *slog.Logger, verifier service.Verifier) *VerificationHandler {
	return &VerificationHandler{
		verifier: verifier,
		logger:   logger,
	}
}

// VerifyByID verifies a stored invoice against the ledger
func (h *VerificationHandler) VerifyByID(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	verdict, err := h.verifier.VerifyByID(c.Request.Context(), req.InvoiceID)
	if err != nil {
		h.respondVerificationError(c, err)
		return
	}

	RespondOK(c, mapVerdictToResponse(verdict))
}

// VerifyByQR verifies the text decoded from a scanned invoice QR code
func (h *VerificationHandler) VerifyByQR(c *gin.Context) {
	var req VerifyQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	verdict, err := h.verifier.VerifyByQR(c.Request.Context(), req.QRData)
	if err != nil {
		h.respondVerificationError(c, err)
		return
	}

	RespondOK(c, mapVerdictToResponse(verdict))
}

func (h *VerificationHandler) respondVerificationError(c *gin.Context, err error) {
	if ledger.IsStorageError(err) {
		h.logger.Error("Ledger unavailable during verification", "error", err)
		RespondServiceUnavailable(c, "LEDGER_UNAVAILABLE", "The ledger could not be read, try again later")
		return
	}
	h.logger.Error("Verification failed", "error", err)
	RespondInternalError(c)
}

func mapVerdictToResponse(verdict verification.Verdict) VerificationResponse {
	response := VerificationResponse{
		Valid:    verdict.Valid,
		Reason:   string(verdict.Reason),
		Category: string(verdict.Category()),
		Message:  verdict.Message,
	}
	if verdict.Invoice != nil {
		response.Invoice = verdict.Invoice
	}
	return response
}
