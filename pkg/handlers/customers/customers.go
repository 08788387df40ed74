package customers

import (
	"context"
	"net/http"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/handlers/render"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/mapping"
	"github.com/chris/trustline/pkg/models"
)

// dashboardTransactions is how many recent transactions a dashboard carries.
const dashboardTransactions = 20

// ErrInvalidOTP rejects a registration whose one-time code did not verify.
var ErrInvalidOTP = &errs.Error{Kind: errs.KindValidation, Code: "INVALID_OTP", Message: "one-time code is invalid or expired"}

// Ledger is the relation surface of the credit ledger.
type Ledger interface {
	CheckExists(ctx context.Context, phone, vendorID string) (ledger.Existence, error)
	RegisterRelation(ctx context.Context, in ledger.RegisterInput) (*models.Relation, error)
	Dashboard(ctx context.Context, key models.RelationKey, limit int32) (*ledger.Dashboard, error)
	UpdateProfile(ctx context.Context, key models.RelationKey, upd ledger.ProfileUpdate) (*models.Relation, error)
	SetStatus(ctx context.Context, key models.RelationKey, to models.RelationStatus) (*models.Relation, error)
	MarkDefault(ctx context.Context, key models.RelationKey) (*models.Relation, error)
}

// Verifier checks a one-time code.
type Verifier interface {
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// Scorer recomputes a relation's trust score on demand.
type Scorer interface {
	Recompute(ctx context.Context, key models.RelationKey) (int, error)
}

// CustomersHandler holds the dependencies for relation handlers.
type CustomersHandler struct {
	Ledger   Ledger
	Verifier Verifier
	Scorer   Scorer
}

// NewCustomersHandler creates a new CustomersHandler.
func NewCustomersHandler(l Ledger, verifier Verifier, scorer Scorer) *CustomersHandler {
	return &CustomersHandler{Ledger: l, Verifier: verifier, Scorer: scorer}
}

// CheckCustomer reports whether a phone already has a credit line with a vendor.
func (h *CustomersHandler) CheckCustomer(w http.ResponseWriter, r *http.Request) {
	var req api.CheckCustomerRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	existence, err := h.Ledger.CheckExists(r.Context(), req.Phone, req.VendorId)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, api.CheckCustomerResponse{Exists: existence.Exists, CustomerId: existence.CustomerID})
}

// RegisterCustomer consumes the phone's one-time code and opens a credit line.
// An existing relation is rejected before the code is consumed.
func (h *CustomersHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	existence, err := h.Ledger.CheckExists(r.Context(), req.Phone, req.VendorId)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if existence.Exists {
		render.Error(w, r, errs.ErrDuplicateRelation)
		return
	}

	ok, err := h.Verifier.Verify(r.Context(), req.Phone, req.Code)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if !ok {
		render.Error(w, r, ErrInvalidOTP)
		return
	}

	rel, err := h.Ledger.RegisterRelation(r.Context(), mapping.ToDomainRegistration(&req))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiRelation(rel))
}

// GetDashboard returns the relation and its recent transactions.
func (h *CustomersHandler) GetDashboard(w http.ResponseWriter, r *http.Request, customerID string, vendorID string) {
	d, err := h.Ledger.Dashboard(r.Context(), relationKey(customerID, vendorID), dashboardTransactions)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiDashboard(d))
}

// UpdateProfile edits the relation's dashboard fields.
func (h *CustomersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, customerID string, vendorID string) {
	var req api.UpdateProfileRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	rel, err := h.Ledger.UpdateProfile(r.Context(), relationKey(customerID, vendorID), ledger.ProfileUpdate{
		CustomerName: req.CustomerName,
		KYCVerified:  req.KycVerified,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiRelation(rel))
}

// SetStatus moves the relation to the requested status.
func (h *CustomersHandler) SetStatus(w http.ResponseWriter, r *http.Request, customerID string, vendorID string) {
	var req api.SetStatusRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	rel, err := h.Ledger.SetStatus(r.Context(), relationKey(customerID, vendorID), models.RelationStatus(req.Status))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiRelation(rel))
}

// MarkDefault records a default against the relation.
func (h *CustomersHandler) MarkDefault(w http.ResponseWriter, r *http.Request, customerID string, vendorID string) {
	rel, err := h.Ledger.MarkDefault(r.Context(), relationKey(customerID, vendorID))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiRelation(rel))
}

// RecomputeScore recomputes and persists the relation's trust score.
func (h *CustomersHandler) RecomputeScore(w http.ResponseWriter, r *http.Request, customerID string, vendorID string) {
	score, err := h.Scorer.Recompute(r.Context(), relationKey(customerID, vendorID))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, api.ScoreResponse{CustomerId: customerID, VendorId: vendorID, TrustScore: score})
}

func relationKey(customerID, vendorID string) models.RelationKey {
	return models.RelationKey{CustomerID: customerID, VendorID: vendorID}
}
