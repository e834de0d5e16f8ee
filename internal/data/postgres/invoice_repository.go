// Package postgres provides PostgreSQL implementations of the domain repositories.
// It owns the invoice records that the ledger anchors and the verifier reads.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/shared"
	"github.com/zra-invoice-integrity/internal/platform/persistence"
)

// uniqueViolation is the SQLSTATE postgres raises when idx_invoices_duplicate_lookup rejects an insert
const uniqueViolation = "23505"

const invoiceColumns = `id, supplier_tpin, buyer_tpin, vat, amount, status, COALESCE(hash, ''), COALESCE(tx_ref, ''),
		registration_status, registration_attempts, registered_at, created_at, updated_at`

// InvoiceRepository implements the invoice.Repository interface for PostgreSQL
type InvoiceRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository
func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new invoice. An invoice with the same parties, vat and amount
// yields invoice.ErrDuplicateInvoice without an ExistingID.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (id, supplier_tpin, buyer_tpin, vat, amount, status, registration_status, registration_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		inv.ID,
		inv.SupplierTPIN,
		inv.BuyerTPIN,
		inv.VAT,
		inv.Amount,
		inv.Status,
		inv.RegistrationStatus,
		inv.RegistrationAttempts,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Warn("Invoice rejected by uniqueness constraint", "id", inv.ID.String(), "constraint", pgErr.ConstraintName)
			return invoice.ErrDuplicateInvoice{}
		}
		r.logger.Error("Failed to create invoice", "id", inv.ID.String(), "error", err)
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice by its ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1
	`

	inv, err := scanInvoice(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrInvoiceNotFound{InvoiceID: id}
		}
		r.logger.Error("Failed to get invoice", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return inv, nil
}

// FindDuplicate returns an invoice with the same parties, vat and amount, or nil
func (r *InvoiceRepository) FindDuplicate(ctx context.Context, supplierTPIN, buyerTPIN string, vat, amount decimal.Decimal) (*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE supplier_tpin = $1 AND buyer_tpin = $2 AND vat = $3 AND amount = $4
		ORDER BY created_at ASC
		LIMIT 1
	`

	inv, err := scanInvoice(r.querier.QueryRow(ctx, query, supplierTPIN, buyerTPIN, vat, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to look up duplicate invoice", "supplier_tpin", supplierTPIN, "buyer_tpin", buyerTPIN, "error", err)
		return nil, fmt.Errorf("failed to look up duplicate invoice: %w", err)
	}

	return inv, nil
}

// List returns invoices newest first
func (r *InvoiceRepository) List(ctx context.Context, limit, offset int) ([]*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list invoices", "error", err)
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	return collectInvoices(rows)
}

// Count returns the number of stored invoices
func (r *InvoiceRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM invoices`

	var count int64
	if err := r.querier.QueryRow(ctx, query).Scan(&count); err != nil {
		r.logger.Error("Failed to count invoices", "error", err)
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	return count, nil
}

// UpdateStatus sets the commercial status of an invoice
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.InvoiceStatus) error {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update invoice status", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: id}
	}

	return nil
}

// MarkRegistered stores the ledger hash and reference of an invoice
func (r *InvoiceRepository) MarkRegistered(ctx context.Context, id uuid.UUID, hash, txRef string, registeredAt time.Time) error {
	query := `
		UPDATE invoices
		SET hash = $1, tx_ref = $2, registration_status = $3, registered_at = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, hash, txRef, shared.RegistrationStatusRegistered, registeredAt, id)
	if err != nil {
		r.logger.Error("Failed to mark invoice registered", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark invoice registered: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: id}
	}

	return nil
}

// GetPendingRegistration returns invoices awaiting registration created before olderThan
func (r *InvoiceRepository) GetPendingRegistration(ctx context.Context, olderThan time.Time, limit int) ([]*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE registration_status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, shared.RegistrationStatusPending, olderThan, limit)
	if err != nil {
		r.logger.Error("Failed to get invoices pending registration", "error", err)
		return nil, fmt.Errorf("failed to get invoices pending registration: %w", err)
	}

	return collectInvoices(rows)
}

// IncrementRegistrationAttempts bumps the attempt counter and returns the new value
func (r *InvoiceRepository) IncrementRegistrationAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE invoices
		SET registration_attempts = registration_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING registration_attempts
	`

	var attempts int
	if err := r.querier.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, invoice.ErrInvoiceNotFound{InvoiceID: id}
		}
		r.logger.Error("Failed to increment registration attempts", "id", id.String(), "error", err)
		return 0, fmt.Errorf("failed to increment registration attempts: %w", err)
	}

	return attempts, nil
}

// UpdateRegistrationStatus sets the registration status of an invoice
func (r *InvoiceRepository) UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, status shared.RegistrationStatus) error {
	query := `
		UPDATE invoices
		SET registration_status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update registration status", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: id}
	}

	return nil
}

// LockForUpdate obtains a row lock on the invoice and returns its current state.
// It must run inside a transaction.
func (r *InvoiceRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`

	inv, err := scanInvoice(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrInvoiceNotFound{InvoiceID: id}
		}
		r.logger.Error("Failed to lock invoice for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock invoice for update: %w", err)
	}

	return inv, nil
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.SupplierTPIN,
		&inv.BuyerTPIN,
		&inv.VAT,
		&inv.Amount,
		&inv.Status,
		&inv.Hash,
		&inv.TxRef,
		&inv.RegistrationStatus,
		&inv.RegistrationAttempts,
		&inv.RegisteredAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]*invoice.Invoice, error) {
	defer rows.Close()

	invoices := make([]*invoice.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}

	return invoices, nil
}
