// Package verification cross-checks an invoice record, its ledger entry and an
// optional scanned QR payload and reports whether they agree.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/domain/verification"
	"github.com/zra-invoice-integrity/internal/qrcodec"
)

// InvoiceStore resolves invoices by id
type InvoiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

// PayloadDecoder parses scanned QR text
type PayloadDecoder interface {
	Decode(text string) (qrcodec.Payload, error)
}

// Engine runs verification checks. Every check is a read of durable state, so a
// failing check is final for the request and nothing is retried.
type Engine struct {
	invoices InvoiceStore
	ledger   ledger.Reader
	decoder  PayloadDecoder
	logger   *slog.Logger
}

// NewEngine creates a verification engine
func NewEngine(invoices InvoiceStore, ledgerReader ledger.Reader, decoder PayloadDecoder, logger *slog.Logger) *Engine {
	return &Engine{
		invoices: invoices,
		ledger:   ledgerReader,
		decoder:  decoder,
		logger:   logger.With("component", "verification_engine"),
	}
}

// VerifyByID checks that a stored invoice is registered in the ledger under the
// reference it carries. The error is non-nil only when the invoice store or the
// ledger could not be read.
func (e *Engine) VerifyByID(ctx context.Context, invoiceID string) (verification.Verdict, error) {
	inv, err := e.resolveInvoice(ctx, invoiceID)
	if err != nil {
		return verification.Verdict{}, err
	}
	if inv == nil {
		return e.report(invoiceID, verification.Invalid(verification.ReasonInvoiceNotFound, nil)), nil
	}

	verdict, err := e.checkLedger(inv, inv.Snapshot())
	if err != nil {
		return verification.Verdict{}, err
	}
	return e.report(invoiceID, verdict), nil
}

// VerifyByQR checks scanned QR text against the invoice it names and the ledger
func (e *Engine) VerifyByQR(ctx context.Context, payloadText string) (verification.Verdict, error) {
	payload, err := e.decoder.Decode(payloadText)
	if err != nil {
		e.logger.Debug("QR payload rejected", "error", err)
		return e.report("", verification.Invalid(verification.ReasonMalformedQR, nil)), nil
	}

	var qr qrcodec.InvoicePayloadV1
	switch p := payload.(type) {
	case qrcodec.InvoicePayloadV1:
		qr = p
	case qrcodec.UnknownPayload:
		if p.Type == qrcodec.PayloadType {
			return e.report("", verification.Invalid(verification.ReasonUnsupportedQRVersion, nil)), nil
		}
		return e.report("", verification.Invalid(verification.ReasonWrongQRType, nil)), nil
	default:
		return e.report("", verification.Invalid(verification.ReasonWrongQRType, nil)), nil
	}

	if !qr.Complete() {
		return e.report(qr.InvoiceID, verification.Invalid(verification.ReasonIncompleteQR, nil)), nil
	}

	inv, err := e.resolveInvoice(ctx, qr.InvoiceID)
	if err != nil {
		return verification.Verdict{}, err
	}
	if inv == nil {
		return e.report(qr.InvoiceID, verification.Invalid(verification.ReasonInvoiceNotFound, nil)), nil
	}

	snapshot := inv.Snapshot()
	if !inv.IsRegistered() {
		return e.report(qr.InvoiceID, verification.Invalid(verification.ReasonNotRegistered, snapshot)), nil
	}
	if qr.Hash != inv.Hash {
		return e.report(qr.InvoiceID, verification.Invalid(verification.ReasonHashMismatch, snapshot)), nil
	}

	verdict, err := e.checkLedger(inv, snapshot)
	if err != nil {
		return verification.Verdict{}, err
	}
	return e.report(qr.InvoiceID, verdict), nil
}

// resolveInvoice returns nil without error when the id does not name an invoice
func (e *Engine) resolveInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	id, err := uuid.Parse(strings.TrimSpace(invoiceID))
	if err != nil {
		return nil, nil
	}

	inv, err := e.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, invoice.ErrInvoiceNotFound{}) {
			return nil, nil
		}
		e.logger.Error("Failed to load invoice for verification", "invoice_id", invoiceID, "error", err)
		return nil, fmt.Errorf("failed to load invoice %s: %w", invoiceID, err)
	}
	return inv, nil
}

func (e *Engine) checkLedger(inv *invoice.Invoice, snapshot *invoice.Snapshot) (verification.Verdict, error) {
	if !inv.IsRegistered() {
		return verification.Invalid(verification.ReasonNotRegistered, snapshot), nil
	}

	record, err := e.ledger.Lookup(inv.Hash)
	if err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound{}) {
			return verification.Invalid(verification.ReasonHashNotInLedger, snapshot), nil
		}
		e.logger.Error("Ledger lookup failed", "invoice_id", inv.ID.String(), "hash", inv.Hash, "error", err)
		return verification.Verdict{}, fmt.Errorf("ledger lookup for invoice %s: %w", inv.ID, err)
	}

	if record.TxRef != inv.TxRef {
		return verification.Invalid(verification.ReasonTxRefMismatch, snapshot), nil
	}

	return verification.Valid(snapshot), nil
}

func (e *Engine) report(invoiceID string, verdict verification.Verdict) verification.Verdict {
	e.logger.Info("Verification completed",
		"invoice_id", invoiceID,
		"valid", verdict.Valid,
		"reason", string(verdict.Reason))
	return verdict
}
