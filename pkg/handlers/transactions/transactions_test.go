package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) DrawCredit(ctx context.Context, in ledger.DrawInput) (*models.Transaction, error) {
	args := m.Called(ctx, in)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *mockLedger) RecordRepayment(ctx context.Context, in ledger.RepaymentInput) (*models.Transaction, error) {
	args := m.Called(ctx, in)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *mockLedger) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	args := m.Called(ctx, txID)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

var created = time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

func domainTx(id string) *models.Transaction {
	return &models.Transaction{
		TransactionID:   id,
		CustomerID:      "c1",
		VendorID:        "v1",
		Amount:          400,
		TransactionType: models.TransactionTypeCreditPurchase,
		PaymentStatus:   models.PENDING,
		DueDate:         created.Add(30 * 24 * time.Hour),
		ScanMethod:      models.ScanManual,
		CreatedAt:       created,
	}
}

func post(t *testing.T, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewReader(b))
}

func TestDrawCredit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		id := uuid.NewString()

		ml.On("DrawCredit", mock.Anything, mock.MatchedBy(func(in ledger.DrawInput) bool {
			return in.CustomerID == "c1" && in.Amount == 400 && in.QRToken == "tok" &&
				in.CustomerLocation != nil && in.CustomerLocation.Latitude == 12.97
		})).Return(domainTx(id), nil)

		rr := httptest.NewRecorder()
		handler.DrawCredit(rr, post(t, api.NewTransaction{
			CustomerId: "c1",
			VendorId:   "v1",
			Amount:     400,
			QrToken:    "tok",
			Location:   &api.Coordinate{Latitude: 12.97, Longitude: 77.59},
		}))

		assert.Equal(t, http.StatusCreated, rr.Code)
		var got api.Transaction
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, id, got.TransactionId.String())
		assert.Equal(t, "2026-03-12", got.DueDate.String())
		ml.AssertExpectations(t)
	})

	t.Run("Insufficient Credit", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		ml.On("DrawCredit", mock.Anything, mock.Anything).Return(nil, errs.ErrInsufficientCredit)

		rr := httptest.NewRecorder()
		handler.DrawCredit(rr, post(t, api.NewTransaction{CustomerId: "c1", VendorId: "v1", Amount: 150}))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("Store Unavailable Is Retryable", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		ml.On("DrawCredit", mock.Anything, mock.Anything).Return(nil, errs.Transient("failed to draw credit", errors.New("throttled")))

		rr := httptest.NewRecorder()
		handler.DrawCredit(rr, post(t, api.NewTransaction{CustomerId: "c1", VendorId: "v1", Amount: 150}))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		var body api.Error
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.True(t, body.Retryable)
	})

	t.Run("Invalid Body Never Reaches The Ledger", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)

		rr := httptest.NewRecorder()
		handler.DrawCredit(rr, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{"amount":-5}`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		ml.AssertNotCalled(t, "DrawCredit", mock.Anything, mock.Anything)
	})
}

func TestRecordRepayment(t *testing.T) {
	id := uuid.NewString()

	t.Run("Success", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		paid := domainTx(id)
		paid.PaymentStatus = models.PAID
		onTime := false

		ml.On("RecordRepayment", mock.Anything, ledger.RepaymentInput{
			TransactionID: id,
			Amount:        400,
			OnTime:        &onTime,
			PaymentMethod: "cash",
		}).Return(paid, nil)

		rr := httptest.NewRecorder()
		handler.RecordRepayment(rr, post(t, api.NewRepayment{Amount: 400, OnTime: &onTime, PaymentMethod: "cash"}), id)

		assert.Equal(t, http.StatusOK, rr.Code)
		ml.AssertExpectations(t)
	})

	t.Run("Already Paid", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		ml.On("RecordRepayment", mock.Anything, mock.Anything).Return(nil, errs.ErrAlreadyPaid)

		rr := httptest.NewRecorder()
		handler.RecordRepayment(rr, post(t, api.NewRepayment{Amount: 400}), id)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Unknown Payment Method", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)

		rr := httptest.NewRecorder()
		handler.RecordRepayment(rr, post(t, api.NewRepayment{Amount: 400, PaymentMethod: "barter"}), id)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		ml.AssertNotCalled(t, "RecordRepayment", mock.Anything, mock.Anything)
	})

	t.Run("Bad Id", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)

		rr := httptest.NewRecorder()
		handler.RecordRepayment(rr, post(t, api.NewRepayment{Amount: 400}), "tx1")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetTransactionById(t *testing.T) {
	id := uuid.NewString()

	t.Run("Success", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		ml.On("GetTransaction", mock.Anything, id).Return(domainTx(id), nil)

		rr := httptest.NewRecorder()
		handler.GetTransactionById(rr, httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+id, nil), id)

		assert.Equal(t, http.StatusOK, rr.Code)
		ml.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		ml := new(mockLedger)
		handler := NewTransactionsHandler(ml)
		ml.On("GetTransaction", mock.Anything, id).Return(nil, errs.ErrTransactionNotFound)

		rr := httptest.NewRecorder()
		handler.GetTransactionById(rr, httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+id, nil), id)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
