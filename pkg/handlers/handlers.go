package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/handlers/auth"
	"github.com/chris/trustline/pkg/handlers/customers"
	"github.com/chris/trustline/pkg/handlers/qrcodes"
	"github.com/chris/trustline/pkg/handlers/transactions"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/middleware"
	"github.com/chris/trustline/pkg/otp"
	"github.com/chris/trustline/pkg/qr"
	"github.com/chris/trustline/pkg/trustscore"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// ApiHandler implements api.ServerInterface by composing the per-resource handlers.
type ApiHandler struct {
	*auth.AuthHandler
	*customers.CustomersHandler
	*qrcodes.QRHandler
	*transactions.TransactionsHandler
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)

// NewApiHandler wires the handlers to the services.
func NewApiHandler(l *ledger.Ledger, qrManager *qr.Manager, otpService *otp.Service, engine *trustscore.Engine) *ApiHandler {
	return &ApiHandler{
		AuthHandler:         auth.NewAuthHandler(otpService, l),
		CustomersHandler:    customers.NewCustomersHandler(l, otpService, engine),
		QRHandler:           qrcodes.NewQRHandler(qrManager),
		TransactionsHandler: transactions.NewTransactionsHandler(l),
	}
}

// RouterOptions carries the optional endpoints mounted next to the API.
type RouterOptions struct {
	Logger *slog.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Websockets serves /ws when set.
	Websockets http.Handler
}

// NewRouter builds the chi router serving si and the operational endpoints.
func NewRouter(si api.ServerInterface, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.NewStructuredLogger(logger))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Websockets != nil {
		router.Handle("/ws", opts.Websockets)
	}

	return api.HandlerFromMux(si, router)
}
