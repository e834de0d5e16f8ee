package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zra-invoice-integrity/internal/api_gateway/service"
	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/registration"
	"github.com/zra-invoice-integrity/internal/domain/shared"
)

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, input service.CreateInvoiceInput) (*invoice.Invoice, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, page, perPage int) ([]*invoice.Invoice, int64, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*invoice.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) CancelInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) InvoiceQR(ctx context.Context, id uuid.UUID, format string) (*service.QRImage, error) {
	args := m.Called(ctx, id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QRImage), args.Error(1)
}

func (m *MockInvoiceService) RegistrationReceipt(ctx context.Context, id uuid.UUID) (*registration.Receipt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registration.Receipt), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// decodeData unmarshals the data field of the response envelope into out
func decodeData(t *testing.T, body []byte, out interface{}) Response {
	t.Helper()
	var envelope Response
	require.NoError(t, json.Unmarshal(body, &envelope))
	if out != nil {
		require.NotNil(t, envelope.Data, "'data' field should not be nil")
		dataBytes, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(dataBytes, out))
	}
	return envelope
}

func sampleInvoice() *invoice.Invoice {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &invoice.Invoice{
		ID:                 uuid.New(),
		SupplierTPIN:       "1000000001",
		BuyerTPIN:          "2000000002",
		VAT:                decimal.RequireFromString("16"),
		Amount:             decimal.RequireFromString("100"),
		Status:             shared.InvoiceStatusPending,
		RegistrationStatus: shared.RegistrationStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestInvoiceHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		expected := sampleInvoice()
		mockService.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(in service.CreateInvoiceInput) bool {
			return in.SupplierTPIN == "1000000001" && in.VAT.Equal(decimal.RequireFromString("16")) &&
				in.Amount.Equal(decimal.RequireFromString("100.50"))
		})).Return(expected, nil).Once()

		router := setupTestRouter()
		router.POST("/invoices", handler.Create)

		body := `{"supplier_tpin":"1000000001","buyer_tpin":"2000000002","vat":16,"amount":"100.50"}`
		req, _ := http.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var response InvoiceResponse
		decodeData(t, rr.Body.Bytes(), &response)
		assert.Equal(t, expected.ID.String(), response.ID)
		assert.Equal(t, "16.00", response.VAT)
		assert.Equal(t, "100.00", response.Amount)
		assert.Equal(t, "PENDING", response.RegistrationStatus)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingAmount", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		router := setupTestRouter()
		router.POST("/invoices", handler.Create)

		body := `{"supplier_tpin":"1000000001","buyer_tpin":"2000000002","vat":16}`
		req, _ := http.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
	})

	testCases := []struct {
		name         string
		serviceErr   error
		expectedCode int
		expectedErr  string
	}{
		{"InvalidTPIN", invoice.ErrInvalidSupplierTPIN, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Duplicate", invoice.ErrDuplicateInvoice{ExistingID: uuid.New()}, http.StatusConflict, "DUPLICATE_INVOICE"},
		{"DuplicateWithoutExistingID", invoice.ErrDuplicateInvoice{}, http.StatusConflict, "DUPLICATE_INVOICE"},
		{"InternalError", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockInvoiceService)
			handler := NewInvoiceHandler(testLogger(), mockService)
			mockService.On("CreateInvoice", mock.Anything, mock.Anything).Return(nil, tc.serviceErr).Once()

			router := setupTestRouter()
			router.POST("/invoices", handler.Create)

			body := `{"supplier_tpin":"1","buyer_tpin":"2000000002","vat":"1","amount":"10"}`
			req, _ := http.NewRequest(http.MethodPost, "/invoices", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			envelope := decodeData(t, rr.Body.Bytes(), nil)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.expectedErr, envelope.Error.Code)
		})
	}
}

func TestInvoiceHandler_List(t *testing.T) {
	mockService := new(MockInvoiceService)
	handler := NewInvoiceHandler(testLogger(), mockService)
	invoices := []*invoice.Invoice{sampleInvoice(), sampleInvoice()}
	mockService.On("ListInvoices", mock.Anything, 2, 2).Return(invoices, int64(5), nil).Once()

	router := setupTestRouter()
	router.GET("/invoices", handler.List)

	req, _ := http.NewRequest(http.MethodGet, "/invoices?page=2&per_page=2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var response InvoiceListResponse
	envelope := decodeData(t, rr.Body.Bytes(), &response)
	assert.Len(t, response.Invoices, 2)
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, int64(3), envelope.Meta.TotalPages)
	assert.Equal(t, int64(5), envelope.Meta.TotalItems)

	t.Run("InvalidPage", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/invoices?page=0", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInvoiceHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		inv := sampleInvoice()
		registeredAt := inv.CreatedAt.Add(time.Minute)
		inv.Hash = strings.Repeat("a", 64)
		inv.TxRef = uuid.New().String()
		inv.RegistrationStatus = shared.RegistrationStatusRegistered
		inv.RegisteredAt = &registeredAt
		mockService.On("GetInvoice", mock.Anything, inv.ID).Return(inv, nil).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+inv.ID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var response InvoiceResponse
		decodeData(t, rr.Body.Bytes(), &response)
		assert.Equal(t, inv.Hash, response.Hash)
		assert.Equal(t, inv.TxRef, response.TxRef)
		assert.Equal(t, "REGISTERED", response.RegistrationStatus)
		assert.Equal(t, "2024-05-01T10:01:00Z", response.RegisteredAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		id := uuid.New()
		mockService.On("GetInvoice", mock.Anything, id).Return(nil, invoice.ErrInvoiceNotFound{InvoiceID: id}).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+id.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		router := setupTestRouter()
		router.GET("/invoices/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/not-a-uuid", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "GetInvoice", mock.Anything, mock.Anything)
	})
}

func TestInvoiceHandler_Cancel(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{"Success", nil, http.StatusOK},
		{"AlreadyCancelled", invoice.ErrAlreadyCancelled, http.StatusConflict},
		{"Paid", invoice.ErrInvoicePaid, http.StatusConflict},
		{"NotFound", invoice.ErrInvoiceNotFound{}, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockInvoiceService)
			handler := NewInvoiceHandler(testLogger(), mockService)
			inv := sampleInvoice()
			if tc.err == nil {
				inv.Status = shared.InvoiceStatusCancelled
				mockService.On("CancelInvoice", mock.Anything, inv.ID).Return(inv, nil).Once()
			} else {
				mockService.On("CancelInvoice", mock.Anything, inv.ID).Return(nil, tc.err).Once()
			}

			router := setupTestRouter()
			router.PATCH("/invoices/:id/cancel", handler.Cancel)

			req, _ := http.NewRequest(http.MethodPatch, "/invoices/"+inv.ID.String()+"/cancel", nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.err == nil {
				var response InvoiceResponse
				decodeData(t, rr.Body.Bytes(), &response)
				assert.Equal(t, "CANCELLED", response.Status)
			}
		})
	}
}

func TestInvoiceHandler_QRCode(t *testing.T) {
	id := uuid.New()
	image := &service.QRImage{
		Payload:     `{"invoice_id": "` + id.String() + `", "type": "zra_invoice", "version": "1.0"}`,
		ContentType: "image/png",
		Image:       []byte("\x89PNG-bytes"),
	}

	t.Run("RawImage", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		mockService.On("InvoiceQR", mock.Anything, id, "png").Return(image, nil).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id/qr", handler.QRCode)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+id.String()+"/qr", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		assert.Equal(t, image.Image, rr.Body.Bytes())
	})

	t.Run("DataURI", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		mockService.On("InvoiceQR", mock.Anything, id, "png").Return(image, nil).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id/qr", handler.QRCode)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+id.String()+"/qr?format=png&encoding=datauri", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var response QRCodeResponse
		decodeData(t, rr.Body.Bytes(), &response)
		assert.Equal(t, id.String(), response.InvoiceID)
		assert.Equal(t, image.Payload, response.Payload)
		assert.True(t, strings.HasPrefix(response.DataURI, "data:image/png;base64,"))
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		mockService.On("InvoiceQR", mock.Anything, id, "gif").Return(nil, service.ErrUnsupportedQRFormat).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id/qr", handler.QRCode)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+id.String()+"/qr?format=gif", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInvoiceHandler_Registration(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		receipt := &registration.Receipt{
			InvoiceID:  id.String(),
			Hash:       strings.Repeat("b", 64),
			TxRef:      uuid.New().String(),
			Network:    registration.Network,
			Status:     registration.StatusConfirmed,
			Timestamp:  "2024-05-01T10:00:00.000000Z",
			RecordedAt: time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC),
		}
		mockService.On("RegistrationReceipt", mock.Anything, id).Return(receipt, nil).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id/registration", handler.Registration)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+id.String()+"/registration", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var response ReceiptResponse
		decodeData(t, rr.Body.Bytes(), &response)
		assert.Equal(t, receipt.TxRef, response.TxRef)
		assert.Equal(t, registration.Network, response.Network)
		assert.Equal(t, "2024-05-01T10:00:01Z", response.RecordedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockInvoiceService)
		handler := NewInvoiceHandler(testLogger(), mockService)
		mockService.On("RegistrationReceipt", mock.Anything, id).Return(nil, registration.ErrReceiptNotFound{InvoiceID: id.String()}).Once()

		router := setupTestRouter()
		router.GET("/invoices/:id/registration", handler.Registration)

		req, _ := http.NewRequest(http.MethodGet, "/invoices/"+id.String()+"/registration", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
