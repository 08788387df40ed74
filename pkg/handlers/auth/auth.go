package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/handlers/render"
	"github.com/chris/trustline/pkg/ledger"
)

// OTP is the one-time code service the auth handlers drive.
type OTP interface {
	Issue(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// RelationChecker looks up an existing credit line for a phone.
type RelationChecker interface {
	CheckExists(ctx context.Context, phone, vendorID string) (ledger.Existence, error)
}

// AuthHandler holds the dependencies for the phone verification handlers.
type AuthHandler struct {
	OTP     OTP
	Checker RelationChecker
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(otp OTP, checker RelationChecker) *AuthHandler {
	return &AuthHandler{OTP: otp, Checker: checker}
}

// SendOTP issues a one-time code to the requested phone.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req api.SendOTPRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	if err := h.OTP.Issue(r.Context(), req.Phone); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// VerifyOTP checks a submitted code. A wrong code is a normal response with Verified false.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyOTPRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	ok, err := h.OTP.Verify(r.Context(), req.Phone, req.Code)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := api.VerifyOTPResponse{Verified: ok}
	if ok && strings.TrimSpace(req.VendorId) != "" {
		existence, err := h.Checker.CheckExists(r.Context(), req.Phone, req.VendorId)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		resp.Exists = existence.Exists
		resp.CustomerId = existence.CustomerID
	}
	render.JSON(w, http.StatusOK, resp)
}
