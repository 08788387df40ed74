package qrcodes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/qr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockManager struct {
	mock.Mock
}

func (m *mockManager) Issue(ctx context.Context, vendorID string) (*models.QRToken, error) {
	args := m.Called(ctx, vendorID)
	qt, _ := args.Get(0).(*models.QRToken)
	return qt, args.Error(1)
}

func (m *mockManager) Validate(ctx context.Context, qrData, customerID string, location *models.Coordinate) (*qr.ValidationResult, error) {
	args := m.Called(ctx, qrData, customerID, location)
	res, _ := args.Get(0).(*qr.ValidationResult)
	return res, args.Error(1)
}

func (m *mockManager) MarkUsed(ctx context.Context, token, customerID string) error {
	return m.Called(ctx, token, customerID).Error(0)
}

func (m *mockManager) ListActive(ctx context.Context, vendorID string) ([]models.QRToken, error) {
	args := m.Called(ctx, vendorID)
	tokens, _ := args.Get(0).([]models.QRToken)
	return tokens, args.Error(1)
}

func jsonRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
}

func TestIssueQR(t *testing.T) {
	now := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	m := new(mockManager)
	handler := NewQRHandler(m)
	m.On("Issue", mock.Anything, "v1").Return(&models.QRToken{
		Token:     "tok",
		VendorID:  "v1",
		QRData:    qr.BuildPayload("v1", "tok"),
		CreatedAt: now,
		ExpiresAt: now.Add(qr.TTL),
	}, nil)

	rr := httptest.NewRecorder()
	handler.IssueQR(rr, httptest.NewRequest(http.MethodPost, "/", nil), "v1")

	require.Equal(t, http.StatusCreated, rr.Code)
	var got api.QRToken
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "paynaka://scan/v1/tok", got.QrData)
	assert.Equal(t, 60*time.Second, got.ExpiresAt.Sub(got.CreatedAt))
}

func TestValidateQR(t *testing.T) {
	t.Run("Rejection Is A Normal Response", func(t *testing.T) {
		m := new(mockManager)
		handler := NewQRHandler(m)
		m.On("Validate", mock.Anything, "paynaka://scan/v1/tok", "c1", &models.Coordinate{Latitude: 13.5, Longitude: 77.59}).
			Return(&qr.ValidationResult{Valid: false, Code: "TOO_FAR", Reason: "customer is too far from the vendor", DistanceKm: 58.9}, nil)

		rr := httptest.NewRecorder()
		handler.ValidateQR(rr, jsonRequest(t, api.ValidateQRRequest{
			QrData:     "paynaka://scan/v1/tok",
			CustomerId: "c1",
			Location:   &api.Coordinate{Latitude: 13.5, Longitude: 77.59},
		}))

		require.Equal(t, http.StatusOK, rr.Code)
		var got api.ValidateQRResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.False(t, got.Valid)
		assert.Equal(t, "TOO_FAR", got.Code)
		m.AssertExpectations(t)
	})

	t.Run("Malformed Payload", func(t *testing.T) {
		m := new(mockManager)
		handler := NewQRHandler(m)
		m.On("Validate", mock.Anything, "garbage", "c1", (*models.Coordinate)(nil)).Return(nil, errs.ErrMalformedQR)

		rr := httptest.NewRecorder()
		handler.ValidateQR(rr, jsonRequest(t, api.ValidateQRRequest{QrData: "garbage", CustomerId: "c1"}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUseQR(t *testing.T) {
	t.Run("Consumed", func(t *testing.T) {
		m := new(mockManager)
		handler := NewQRHandler(m)
		m.On("MarkUsed", mock.Anything, "tok", "c1").Return(nil)

		rr := httptest.NewRecorder()
		handler.UseQR(rr, jsonRequest(t, api.UseQRRequest{Token: "tok", CustomerId: "c1"}))

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("Second Use Conflicts", func(t *testing.T) {
		m := new(mockManager)
		handler := NewQRHandler(m)
		m.On("MarkUsed", mock.Anything, "tok", "c2").Return(errs.ErrTokenAlreadyConsumed)

		rr := httptest.NewRecorder()
		handler.UseQR(rr, jsonRequest(t, api.UseQRRequest{Token: "tok", CustomerId: "c2"}))

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestListActiveQR(t *testing.T) {
	m := new(mockManager)
	handler := NewQRHandler(m)
	m.On("ListActive", mock.Anything, "v1").Return([]models.QRToken{}, nil)

	rr := httptest.NewRecorder()
	handler.ListActiveQR(rr, httptest.NewRequest(http.MethodGet, "/", nil), "v1")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}
