package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/domain/registration"
	"github.com/zra-invoice-integrity/internal/domain/shared"
	"github.com/zra-invoice-integrity/internal/platform/messaging/producers"
	"github.com/zra-invoice-integrity/internal/qrcodec"
)

// QR image formats
const (
	QRFormatPNG = "png"
	QRFormatSVG = "svg"
)

var ErrUnsupportedQRFormat = errors.New("qr format must be png or svg")

// InvoiceServiceImpl implements the InvoiceService interface
type InvoiceServiceImpl struct {
	invoiceRepo invoice.Repository
	receiptRepo registration.Repository
	producer    producers.MessagePublisher
	codec       *qrcodec.Codec
	logger      *slog.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	logger *slog.Logger,
	invoiceRepo invoice.Repository,
	receiptRepo registration.Repository,
	producer producers.MessagePublisher,
	codec *qrcodec.Codec,
) InvoiceService {
	return &InvoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		receiptRepo: receiptRepo,
		producer:    producer,
		codec:       codec,
		logger:      logger,
	}
}

// CreateInvoice stores the invoice and publishes a registration request. Issuance
// and registration succeed or fail independently: a publish failure leaves the
// invoice PENDING for the registrar's sweeper.
func (s *InvoiceServiceImpl) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*invoice.Invoice, error) {
	logger := s.logger
	if input.CorrelationID != "" {
		logger = s.logger.With("correlation_id", input.CorrelationID)
	}

	inv, err := invoice.NewInvoice(input.SupplierTPIN, input.BuyerTPIN, input.VAT, input.Amount)
	if err != nil {
		return nil, err
	}

	existing, err := s.invoiceRepo.FindDuplicate(ctx, inv.SupplierTPIN, inv.BuyerTPIN, inv.VAT, inv.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate invoice: %w", err)
	}
	if existing != nil {
		logger.Warn("Duplicate invoice rejected", "existing_id", existing.ID.String())
		return nil, invoice.ErrDuplicateInvoice{ExistingID: existing.ID}
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		var dupErr invoice.ErrDuplicateInvoice
		if errors.As(err, &dupErr) {
			return nil, s.concurrentDuplicate(ctx, inv, logger)
		}
		return nil, err
	}

	request := &shared.RegistrationRequest{
		InvoiceID:     inv.ID,
		CorrelationID: input.CorrelationID,
		Source:        shared.RegistrationSourceAPI,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, inv.ID.String(), request); err != nil {
		logger.Warn("Failed to publish registration request, sweeper will retry",
			"invoice_id", inv.ID.String(),
			"error", err,
		)
	} else {
		logger.Info("Invoice issued and registration requested", "invoice_id", inv.ID.String())
	}

	return inv, nil
}

// concurrentDuplicate resolves the invoice that won an insert race on identical content
func (s *InvoiceServiceImpl) concurrentDuplicate(ctx context.Context, inv *invoice.Invoice, logger *slog.Logger) error {
	existing, err := s.invoiceRepo.FindDuplicate(ctx, inv.SupplierTPIN, inv.BuyerTPIN, inv.VAT, inv.Amount)
	if err != nil || existing == nil {
		logger.Warn("Duplicate invoice rejected on insert")
		return invoice.ErrDuplicateInvoice{}
	}
	logger.Warn("Duplicate invoice rejected on insert", "existing_id", existing.ID.String())
	return invoice.ErrDuplicateInvoice{ExistingID: existing.ID}
}

func (s *InvoiceServiceImpl) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, id)
}

func (s *InvoiceServiceImpl) ListInvoices(ctx context.Context, page, perPage int) ([]*invoice.Invoice, int64, error) {
	offset := (page - 1) * perPage

	invoices, err := s.invoiceRepo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.invoiceRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// CancelInvoice marks the invoice CANCELLED. Its ledger registration stays valid.
func (s *InvoiceServiceImpl) CancelInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := inv.Cancel(); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.UpdateStatus(ctx, id, inv.Status); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice cancelled", "invoice_id", id.String())
	return inv, nil
}

// InvoiceQR renders the QR code for an invoice. Registered invoices carry their hash
// and registration time so a scanner can check them offline against the ledger.
func (s *InvoiceServiceImpl) InvoiceQR(ctx context.Context, id uuid.UUID, format string) (*QRImage, error) {
	if format == "" {
		format = QRFormatPNG
	}
	if format != QRFormatPNG && format != QRFormatSVG {
		return nil, ErrUnsupportedQRFormat
	}

	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload := qrPayload(inv)
	text, err := s.codec.Marshal(payload)
	if err != nil {
		return nil, err
	}

	image := &QRImage{Payload: text}
	switch format {
	case QRFormatSVG:
		image.ContentType = "image/svg+xml"
		image.Image, err = s.codec.EncodeSVG(payload)
	default:
		image.ContentType = "image/png"
		image.Image, err = s.codec.Encode(payload)
	}
	if err != nil {
		s.logger.Error("Failed to render invoice QR code", "invoice_id", id.String(), "format", format, "error", err)
		return nil, err
	}

	return image, nil
}

func (s *InvoiceServiceImpl) RegistrationReceipt(ctx context.Context, id uuid.UUID) (*registration.Receipt, error) {
	return s.receiptRepo.GetByInvoiceID(ctx, id.String())
}

func qrPayload(inv *invoice.Invoice) qrcodec.InvoicePayloadV1 {
	if !inv.IsRegistered() {
		return qrcodec.NewInvoicePayload(inv.ID.String(), "", "")
	}

	timestamp := ""
	if inv.RegisteredAt != nil {
		timestamp = inv.RegisteredAt.UTC().Format(ledger.TimestampLayout)
	}
	return qrcodec.NewInvoicePayload(inv.ID.String(), inv.Hash, timestamp)
}
