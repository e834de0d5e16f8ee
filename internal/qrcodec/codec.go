// Package qrcodec renders invoice verification payloads as QR codes and parses the
// text recovered when one is scanned.
package qrcodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/zra-invoice-integrity/internal/config"
	"github.com/zra-invoice-integrity/internal/hasher"
)

// ErrMalformedPayload is returned when scanned text is not a JSON object
var ErrMalformedPayload = errors.New("malformed QR payload")

// Codec encodes payloads at a configured error correction level and image size
type Codec struct {
	level qrcode.RecoveryLevel
	size  int
}

// New creates a codec from configuration
func New(cfg config.QRConfig) (*Codec, error) {
	level, err := ParseRecoveryLevel(cfg.ErrorCorrection)
	if err != nil {
		return nil, err
	}
	if cfg.ImageSize < 21 {
		return nil, fmt.Errorf("QR image size %d is below the 21 pixel minimum", cfg.ImageSize)
	}

	return &Codec{level: level, size: cfg.ImageSize}, nil
}

// ParseRecoveryLevel maps low, medium, high or highest to a QR recovery level.
// An empty name means medium.
func ParseRecoveryLevel(name string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return qrcode.Low, nil
	case "", "medium":
		return qrcode.Medium, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("unknown QR error correction level %q", name)
	}
}

// Marshal returns the canonical sorted-key JSON text embedded in the QR code
func (c *Codec) Marshal(p Payload) (string, error) {
	out, err := hasher.Canonicalize(p.fields())
	if err != nil {
		return "", fmt.Errorf("failed to marshal QR payload: %w", err)
	}
	return string(out), nil
}

// Encode renders the payload as a PNG image
func (c *Codec) Encode(p Payload) ([]byte, error) {
	q, err := c.code(p)
	if err != nil {
		return nil, err
	}

	png, err := q.PNG(c.size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR PNG: %w", err)
	}
	return png, nil
}

// EncodeSVG renders the payload as an SVG document, one unit per module
func (c *Codec) EncodeSVG(p Payload) ([]byte, error) {
	q, err := c.code(p)
	if err != nil {
		return nil, err
	}

	bitmap := q.Bitmap()
	modules := strconv.Itoa(len(bitmap))
	size := strconv.Itoa(c.size)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="` + size + `" height="` + size +
		`" viewBox="0 0 ` + modules + ` ` + modules + `" shape-rendering="crispEdges">`)
	buf.WriteString(`<rect width="` + modules + `" height="` + modules + `" fill="#ffffff"/>`)
	buf.WriteString(`<path fill="#000000" d="`)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&buf, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	buf.WriteString(`"/></svg>`)

	return buf.Bytes(), nil
}

func (c *Codec) code(p Payload) (*qrcode.QRCode, error) {
	text, err := c.Marshal(p)
	if err != nil {
		return nil, err
	}

	q, err := qrcode.New(text, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR code: %w", err)
	}
	return q, nil
}

// Decode parses text recovered from a scanned QR code. A JSON object of an
// unrecognised type or version is returned as UnknownPayload, not as an error.
func (c *Codec) Decode(text string) (Payload, error) {
	return Decode(text)
}

// Decode parses scanned QR text without an encoder configuration
func Decode(text string) (Payload, error) {
	decoder := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	decoder.UseNumber()

	var m map[string]any
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedPayload)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedPayload)
	}

	payloadType := stringField(m, "type")
	version := stringField(m, "version")

	if payloadType == PayloadType && version == VersionV1 {
		return InvoicePayloadV1{
			InvoiceID: stringField(m, "invoice_id"),
			Hash:      stringField(m, "hash"),
			Timestamp: stringField(m, "timestamp"),
		}, nil
	}

	fields := make(map[string]any, len(m))
	for k, v := range m {
		if k == "type" || k == "version" {
			continue
		}
		fields[k] = v
	}
	return UnknownPayload{Type: payloadType, Version: version, Fields: fields}, nil
}
