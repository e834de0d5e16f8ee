package handler

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zra-invoice-integrity/internal/api_gateway/middleware"
	"github.com/zra-invoice-integrity/internal/api_gateway/service"
	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/registration"
)

// InvoiceHandler handles HTTP requests for invoice operations
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *slog.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(logger *slog.Logger, invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// Create issues a new invoice. The response always reports registration as PENDING;
// the ledger registrar picks the invoice up asynchronously.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inv, err := h.invoiceService.CreateInvoice(c.Request.Context(), service.CreateInvoiceInput{
		SupplierTPIN:  req.SupplierTPIN,
		BuyerTPIN:     req.BuyerTPIN,
		VAT:           *req.VAT,
		Amount:        *req.Amount,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		var duplicateErr invoice.ErrDuplicateInvoice
		switch {
		case errors.As(err, &duplicateErr):
			message := "An identical invoice already exists"
			if duplicateErr.ExistingID != uuid.Nil {
				message += ": " + duplicateErr.ExistingID.String()
			}
			RespondConflict(c, "DUPLICATE_INVOICE", message)
		case isInvoiceValidationError(err):
			RespondValidationError(c, err.Error())
		default:
			h.logger.Error("Failed to create invoice", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapInvoiceToResponse(inv))
}

// List returns a page of invoices, newest first
func (h *InvoiceHandler) List(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list invoices", "error", err)
		RespondInternalError(c)
		return
	}

	response := InvoiceListResponse{Invoices: make([]InvoiceResponse, 0, len(invoices))}
	for _, inv := range invoices {
		response.Invoices = append(response.Invoices, mapInvoiceToResponse(inv))
	}
	RespondWithPaginatedData(c, response, params.Page, params.PerPage, total)
}

// GetByID retrieves an invoice by its ID, returning 404 if not found
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := h.parseInvoiceID(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	RespondOK(c, mapInvoiceToResponse(inv))
}

// Cancel marks an invoice as cancelled
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.parseInvoiceID(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.CancelInvoice(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrAlreadyCancelled) || errors.Is(err, invoice.ErrInvoicePaid) {
			RespondConflict(c, "INVALID_STATUS", err.Error())
			return
		}
		h.respondLookupError(c, id, err)
		return
	}

	RespondOK(c, mapInvoiceToResponse(inv))
}

// QRCode renders the invoice QR code. The image is returned as is unless
// encoding=datauri asks for a JSON body carrying a base64 data URI.
func (h *InvoiceHandler) QRCode(c *gin.Context) {
	id, ok := h.parseInvoiceID(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", service.QRFormatPNG)
	image, err := h.invoiceService.InvoiceQR(c.Request.Context(), id, format)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedQRFormat) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.respondLookupError(c, id, err)
		return
	}

	if c.Query("encoding") == "datauri" {
		RespondOK(c, QRCodeResponse{
			InvoiceID: id.String(),
			Format:    format,
			Payload:   image.Payload,
			DataURI:   "data:" + image.ContentType + ";base64," + base64.StdEncoding.EncodeToString(image.Image),
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, image.ContentType, image.Image)
}

// Registration returns the ledger receipt recorded for the invoice
func (h *InvoiceHandler) Registration(c *gin.Context) {
	id, ok := h.parseInvoiceID(c)
	if !ok {
		return
	}

	receipt, err := h.invoiceService.RegistrationReceipt(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, registration.ErrReceiptNotFound{}) {
			RespondNotFound(c, "Invoice has no registration receipt yet")
			return
		}
		h.logger.Error("Failed to get registration receipt", "invoice_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, ReceiptResponse{
		InvoiceID:  receipt.InvoiceID,
		Hash:       receipt.Hash,
		TxRef:      receipt.TxRef,
		Network:    receipt.Network,
		Status:     receipt.Status,
		Timestamp:  receipt.Timestamp,
		RecordedAt: receipt.RecordedAt.UTC().Format(time.RFC3339),
	})
}

func (h *InvoiceHandler) parseInvoiceID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Warn("Invalid invoice ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid invoice ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *InvoiceHandler) respondLookupError(c *gin.Context, id uuid.UUID, err error) {
	if errors.Is(err, invoice.ErrInvoiceNotFound{}) {
		RespondNotFound(c, "Invoice not found")
		return
	}
	h.logger.Error("Invoice request failed", "invoice_id", id.String(), "error", err)
	RespondInternalError(c)
}

func isInvoiceValidationError(err error) bool {
	return errors.Is(err, invoice.ErrInvalidSupplierTPIN) ||
		errors.Is(err, invoice.ErrInvalidBuyerTPIN) ||
		errors.Is(err, invoice.ErrNegativeVAT) ||
		errors.Is(err, invoice.ErrInvalidAmount)
}

// mapInvoiceToResponse maps an invoice entity to an invoice response DTO
func mapInvoiceToResponse(inv *invoice.Invoice) InvoiceResponse {
	response := InvoiceResponse{
		ID:                   inv.ID.String(),
		SupplierTPIN:         inv.SupplierTPIN,
		BuyerTPIN:            inv.BuyerTPIN,
		VAT:                  inv.VAT.StringFixed(invoice.MoneyScale),
		Amount:               inv.Amount.StringFixed(invoice.MoneyScale),
		Status:               string(inv.Status),
		Hash:                 inv.Hash,
		TxRef:                inv.TxRef,
		RegistrationStatus:   string(inv.RegistrationStatus),
		RegistrationAttempts: inv.RegistrationAttempts,
		CreatedAt:            inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            inv.UpdatedAt.Format(time.RFC3339),
	}
	if inv.RegisteredAt != nil {
		response.RegisteredAt = inv.RegisteredAt.Format(time.RFC3339)
	}
	return response
}
