package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zra-invoice-integrity/internal/domain/registration"
)

const (
	// ReceiptCollectionName is the name of the registration receipt collection in MongoDB
	ReceiptCollectionName = "registration_receipts"
)

// ReceiptRepository implements the registration.Repository interface for MongoDB
type ReceiptRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewReceiptRepository creates a new MongoDB receipt repository
func NewReceiptRepository(logger *slog.Logger, db *mongo.Database) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique invoice_id index
func (r *ReceiptRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(ReceiptCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "invoice_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("invoice_id_unique"),
	})
	if err != nil {
		r.logger.Error("Failed to create receipt indexes", "error", err)
		return fmt.Errorf("failed to create receipt indexes: %w", err)
	}

	return nil
}

// Upsert stores the receipt keyed by invoice id. A later registration of the same
// invoice replaces the earlier receipt.
func (r *ReceiptRepository) Upsert(ctx context.Context, receipt *registration.Receipt) error {
	if receipt.InvoiceID == "" {
		return errors.New("receipt invoice id cannot be empty")
	}

	collection := r.db.Collection(ReceiptCollectionName)

	filter := bson.M{"invoice_id": receipt.InvoiceID}
	update := bson.M{"$set": receipt}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		r.logger.Error("Failed to upsert registration receipt",
			"invoice_id", receipt.InvoiceID,
			"error", err)
		return fmt.Errorf("failed to upsert registration receipt: %w", err)
	}

	return nil
}

// GetByInvoiceID retrieves the receipt for an invoice.
// Returns ErrReceiptNotFound if the invoice was never registered.
func (r *ReceiptRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*registration.Receipt, error) {
	collection := r.db.Collection(ReceiptCollectionName)

	var receipt registration.Receipt
	err := collection.FindOne(ctx, bson.M{"invoice_id": invoiceID}).Decode(&receipt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registration.ErrReceiptNotFound{InvoiceID: invoiceID}
		}
		r.logger.Error("Failed to get registration receipt",
			"invoice_id", invoiceID,
			"error", err)
		return nil, fmt.Errorf("failed to get registration receipt: %w", err)
	}

	return &receipt, nil
}
