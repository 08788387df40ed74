package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ServerInterface is implemented by the HTTP handlers.
type ServerInterface interface {
	// (POST /api/v1/auth/send-otp)
	SendOTP(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/auth/verify-otp)
	VerifyOTP(w http.ResponseWriter, r *http.Request)

	// (POST /api/v1/customers/check)
	CheckCustomer(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/customers/register)
	RegisterCustomer(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/customers/{customerID}/vendors/{vendorID})
	GetDashboard(w http.ResponseWriter, r *http.Request, customerID string, vendorID string)
	// (PATCH /api/v1/customers/{customerID}/vendors/{vendorID})
	UpdateProfile(w http.ResponseWriter, r *http.Request, customerID string, vendorID string)
	// (POST /api/v1/customers/{customerID}/vendors/{vendorID}/status)
	SetStatus(w http.ResponseWriter, r *http.Request, customerID string, vendorID string)
	// (POST /api/v1/customers/{customerID}/vendors/{vendorID}/defaults)
	MarkDefault(w http.ResponseWriter, r *http.Request, customerID string, vendorID string)
	// (POST /api/v1/customers/{customerID}/vendors/{vendorID}/score)
	RecomputeScore(w http.ResponseWriter, r *http.Request, customerID string, vendorID string)

	// (POST /api/v1/vendors/{vendorID}/qr)
	IssueQR(w http.ResponseWriter, r *http.Request, vendorID string)
	// (GET /api/v1/vendors/{vendorID}/qr)
	ListActiveQR(w http.ResponseWriter, r *http.Request, vendorID string)
	// (POST /api/v1/qr/validate)
	ValidateQR(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/qr/use)
	UseQR(w http.ResponseWriter, r *http.Request)

	// (POST /api/v1/transactions)
	DrawCredit(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/transactions/{transactionID})
	GetTransactionById(w http.ResponseWriter, r *http.Request, transactionID string)
	// (POST /api/v1/transactions/{transactionID}/repayments)
	RecordRepayment(w http.ResponseWriter, r *http.Request, transactionID string)
}

// HandlerFromMux mounts si's routes on r and returns r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/send-otp", si.SendOTP)
		r.Post("/auth/verify-otp", si.VerifyOTP)

		r.Post("/customers/check", si.CheckCustomer)
		r.Post("/customers/register", si.RegisterCustomer)
		r.Route("/customers/{customerID}/vendors/{vendorID}", func(r chi.Router) {
			r.Get("/", relationRoute(si.GetDashboard))
			r.Patch("/", relationRoute(si.UpdateProfile))
			r.Post("/status", relationRoute(si.SetStatus))
			r.Post("/defaults", relationRoute(si.MarkDefault))
			r.Post("/score", relationRoute(si.RecomputeScore))
		})

		r.Post("/vendors/{vendorID}/qr", func(w http.ResponseWriter, r *http.Request) {
			si.IssueQR(w, r, chi.URLParam(r, "vendorID"))
		})
		r.Get("/vendors/{vendorID}/qr", func(w http.ResponseWriter, r *http.Request) {
			si.ListActiveQR(w, r, chi.URLParam(r, "vendorID"))
		})
		r.Post("/qr/validate", si.ValidateQR)
		r.Post("/qr/use", si.UseQR)

		r.Post("/transactions", si.DrawCredit)
		r.Get("/transactions/{transactionID}", func(w http.ResponseWriter, r *http.Request) {
			si.GetTransactionById(w, r, chi.URLParam(r, "transactionID"))
		})
		r.Post("/transactions/{transactionID}/repayments", func(w http.ResponseWriter, r *http.Request) {
			si.RecordRepayment(w, r, chi.URLParam(r, "transactionID"))
		})
	})
	return r
}

func relationRoute(fn func(http.ResponseWriter, *http.Request, string, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, chi.URLParam(r, "customerID"), chi.URLParam(r, "vendorID"))
	}
}
