package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/otp"
	"github.com/chris/trustline/pkg/qr"
	"github.com/chris/trustline/pkg/storage/memory"
	"github.com/chris/trustline/pkg/trustscore"
	"github.com/chris/trustline/pkg/websockets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "+919876543210"

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *captureNotifier) Send(_ context.Context, phone, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[string]string)
	}
	n.codes[phone] = code
	return nil
}

func (n *captureNotifier) code(phone string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[phone]
}

type fixture struct {
	router   http.Handler
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.PutVendor(context.Background(), &models.Vendor{
		VendorID: "v1",
		Name:     "Corner Shop",
		Location: &models.Coordinate{Latitude: 12.9716, Longitude: 77.5946},
	}))

	notifier := &captureNotifier{}
	engine := trustscore.NewEngine(store, nil)
	l := ledger.New(store, &trustscore.SyncTrigger{Engine: engine}, websockets.NewHub(), nil, ledger.DefaultPolicy())
	h := NewApiHandler(l, qr.NewManager(store, nil), otp.NewService(store, notifier, nil), engine)

	return &fixture{
		router:   NewRouter(h, RouterOptions{}),
		notifier: notifier,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (f *fixture) register(t *testing.T) api.Relation {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/v1/auth/send-otp", api.SendOTPRequest{Phone: phone})
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/customers/register", api.RegisterRequest{
		Phone:        phone,
		Code:         f.notifier.code(phone),
		CustomerName: "Asha",
		VendorId:     "v1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[api.Relation](t, rr)
}

func TestCreditLifecycle(t *testing.T) {
	f := newFixture(t)

	rel := f.register(t)
	assert.Equal(t, "Corner Shop", rel.VendorName)
	assert.Equal(t, int64(50000), rel.AvailableCredit)
	assert.Equal(t, "active", rel.Status)

	rr := f.do(t, http.MethodPost, "/api/v1/customers/check", api.CheckCustomerRequest{Phone: phone, VendorId: "v1"})
	require.Equal(t, http.StatusOK, rr.Code)
	check := decode[api.CheckCustomerResponse](t, rr)
	assert.True(t, check.Exists)
	assert.Equal(t, rel.CustomerId, check.CustomerId)

	rr = f.do(t, http.MethodPost, "/api/v1/vendors/v1/qr", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	token := decode[api.QRToken](t, rr)

	rr = f.do(t, http.MethodGet, "/api/v1/vendors/v1/qr", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]api.QRToken](t, rr), 1)

	near := &api.Coordinate{Latitude: 12.9730, Longitude: 77.5960}
	rr = f.do(t, http.MethodPost, "/api/v1/qr/validate", api.ValidateQRRequest{
		QrData:     token.QrData,
		CustomerId: rel.CustomerId,
		Location:   near,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	validation := decode[api.ValidateQRResponse](t, rr)
	assert.True(t, validation.Valid)
	assert.True(t, validation.LocationVerified)
	assert.Equal(t, int64(50000), validation.AvailableCredit)

	rr = f.do(t, http.MethodPost, "/api/v1/transactions", api.NewTransaction{
		CustomerId:  rel.CustomerId,
		VendorId:    "v1",
		Amount:      400,
		Description: "rice",
		QrToken:     token.Token,
		Location:    near,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[api.Transaction](t, rr)
	assert.Equal(t, "pending", tx.PaymentStatus)
	assert.Equal(t, "qr", tx.ScanMethod)
	assert.True(t, tx.LocationVerified)

	rr = f.do(t, http.MethodPost, "/api/v1/qr/use", api.UseQRRequest{Token: token.Token, CustomerId: rel.CustomerId})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "TOKEN_ALREADY_CONSUMED", decode[api.Error](t, rr).Code)

	rr = f.do(t, http.MethodGet, "/api/v1/transactions/"+tx.TransactionId.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(400), decode[api.Transaction](t, rr).Amount)

	rr = f.do(t, http.MethodPost, "/api/v1/transactions/"+tx.TransactionId.String()+"/repayments", api.NewRepayment{
		Amount:        400,
		PaymentMethod: "upi",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	paid := decode[api.Transaction](t, rr)
	assert.Equal(t, "paid", paid.PaymentStatus)
	assert.Equal(t, "upi", paid.PaymentMethod)

	rr = f.do(t, http.MethodGet, "/api/v1/customers/"+rel.CustomerId+"/vendors/v1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[api.Dashboard](t, rr)
	assert.Equal(t, int64(50000), dash.Relation.AvailableCredit)
	assert.Equal(t, int64(1), dash.Relation.OnTimePayments)
	assert.NotEmpty(t, dash.Relation.TrustScoreHistory)
	require.Len(t, dash.Transactions, 1)
	assert.Equal(t, tx.TransactionId, dash.Transactions[0].TransactionId)

	rr = f.do(t, http.MethodPost, "/api/v1/customers/"+rel.CustomerId+"/vendors/v1/score", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	score := decode[api.ScoreResponse](t, rr)
	assert.GreaterOrEqual(t, score.TrustScore, 300)
	assert.LessOrEqual(t, score.TrustScore, 900)
}

func TestRelationAdministration(t *testing.T) {
	f := newFixture(t)
	rel := f.register(t)
	base := "/api/v1/customers/" + rel.CustomerId + "/vendors/v1"

	rr := f.do(t, http.MethodPatch, base, api.UpdateProfileRequest{CustomerName: "Asha K", KycVerified: true})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[api.Relation](t, rr)
	assert.Equal(t, "Asha K", updated.CustomerName)
	assert.True(t, updated.KycVerified)

	rr = f.do(t, http.MethodPost, base+"/status", api.SetStatusRequest{Status: "suspended"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "suspended", decode[api.Relation](t, rr).Status)

	rr = f.do(t, http.MethodPost, "/api/v1/transactions", api.NewTransaction{CustomerId: rel.CustomerId, VendorId: "v1", Amount: 100})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "RELATION_SUSPENDED", decode[api.Error](t, rr).Code)

	rr = f.do(t, http.MethodPost, base+"/status", api.SetStatusRequest{Status: "blocked"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPost, base+"/status", api.SetStatusRequest{Status: "active"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", decode[api.Error](t, rr).Code)

	rr = f.do(t, http.MethodPost, base+"/defaults", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), decode[api.Relation](t, rr).DefaultCount)
}

func TestErrorResponses(t *testing.T) {
	f := newFixture(t)
	rel := f.register(t)

	t.Run("Duplicate Registration", func(t *testing.T) {
		f.do(t, http.MethodPost, "/api/v1/auth/send-otp", api.SendOTPRequest{Phone: phone})
		rr := f.do(t, http.MethodPost, "/api/v1/customers/register", api.RegisterRequest{
			Phone: phone, Code: f.notifier.code(phone), VendorId: "v1",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "DUPLICATE_RELATION", decode[api.Error](t, rr).Code)

		rr = f.do(t, http.MethodPost, "/api/v1/auth/verify-otp", api.VerifyOTPRequest{Phone: phone, Code: f.notifier.code(phone)})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, decode[api.VerifyOTPResponse](t, rr).Verified, "a rejected registration leaves the code usable")
	})

	t.Run("Wrong Code Does Not Register", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/customers/register", api.RegisterRequest{
			Phone: "+919800000000", Code: "000000", VendorId: "v1",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "INVALID_OTP", decode[api.Error](t, rr).Code)
	})

	t.Run("Insufficient Credit", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/transactions", api.NewTransaction{CustomerId: rel.CustomerId, VendorId: "v1", Amount: 50001})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "INSUFFICIENT_CREDIT", decode[api.Error](t, rr).Code)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/transactions", api.NewTransaction{CustomerId: rel.CustomerId, VendorId: "v1", Amount: 0})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decode[api.Error](t, rr)
		assert.Equal(t, "INVALID_REQUEST", body.Code)
		assert.Contains(t, body.Message, "amount")
	})

	t.Run("Malformed QR", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/qr/validate", api.ValidateQRRequest{QrData: "https://example.com", CustomerId: rel.CustomerId})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "MALFORMED_QR", decode[api.Error](t, rr).Code)
	})

	t.Run("Unknown Vendor QR", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/vendors/nope/qr", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Transaction Id Must Be A UUID", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/transactions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unknown Transaction", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/transactions/7f1b2c3d-0000-4000-8000-000000000000", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "TRANSACTION_NOT_FOUND", decode[api.Error](t, rr).Code)
	})

	t.Run("Unknown Relation", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/customers/ghost/vendors/v1", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestVerifyOTP(t *testing.T) {
	f := newFixture(t)
	rel := f.register(t)

	f.do(t, http.MethodPost, "/api/v1/auth/send-otp", api.SendOTPRequest{Phone: phone})
	rr := f.do(t, http.MethodPost, "/api/v1/auth/verify-otp", api.VerifyOTPRequest{Phone: phone, Code: f.notifier.code(phone), VendorId: "v1"})

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[api.VerifyOTPResponse](t, rr)
	assert.True(t, resp.Verified)
	assert.True(t, resp.Exists)
	assert.Equal(t, rel.CustomerId, resp.CustomerId)
}

func TestOperationalEndpoints(t *testing.T) {
	metricsHit := false
	router := NewRouter(&ApiHandler{}, RouterOptions{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { metricsHit = true }),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, metricsHit)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
