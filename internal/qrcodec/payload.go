package qrcodec

import (
	"encoding/json"
)

const (
	// PayloadType tags every invoice verification QR code
	PayloadType = "zra_invoice"
	// VersionV1 is the only payload schema this service issues
	VersionV1 = "1.0"
)

// Payload is the structured content of a verification QR code. Each schema version
// is its own type; anything unrecognised decodes to UnknownPayload.
type Payload interface {
	PayloadType() string
	PayloadVersion() string
	fields() map[string]any
}

// InvoicePayloadV1 is the zra_invoice 1.0 schema. Hash and Timestamp are present once
// the invoice is registered in the ledger.
type InvoicePayloadV1 struct {
	InvoiceID string
	Hash      string
	Timestamp string
}

// NewInvoicePayload builds the payload printed on an invoice
func NewInvoicePayload(invoiceID, hash, timestamp string) InvoicePayloadV1 {
	return InvoicePayloadV1{InvoiceID: invoiceID, Hash: hash, Timestamp: timestamp}
}

func (p InvoicePayloadV1) PayloadType() string    { return PayloadType }
func (p InvoicePayloadV1) PayloadVersion() string { return VersionV1 }

// Complete reports whether the fields needed for verification are present
func (p InvoicePayloadV1) Complete() bool {
	return p.InvoiceID != "" && p.Hash != ""
}

func (p InvoicePayloadV1) fields() map[string]any {
	m := map[string]any{
		"type":       PayloadType,
		"version":    VersionV1,
		"invoice_id": p.InvoiceID,
	}
	if p.Hash != "" {
		m["hash"] = p.Hash
	}
	if p.Timestamp != "" {
		m["timestamp"] = p.Timestamp
	}
	return m
}

// UnknownPayload is a well-formed JSON object whose type or version is not one this
// service understands
type UnknownPayload struct {
	Type    string
	Version string
	Fields  map[string]any
}

func (p UnknownPayload) PayloadType() string    { return p.Type }
func (p UnknownPayload) PayloadVersion() string { return p.Version }

func (p UnknownPayload) fields() map[string]any {
	m := make(map[string]any, len(p.Fields)+2)
	for k, v := range p.Fields {
		m[k] = v
	}
	if p.Type != "" {
		m["type"] = p.Type
	}
	if p.Version != "" {
		m["version"] = p.Version
	}
	return m
}

// stringField reads a text field, accepting numeric ids issued by older systems
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
