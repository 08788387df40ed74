package qrcodes

import (
	"context"
	"net/http"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/handlers/render"
	"github.com/chris/trustline/pkg/mapping"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/qr"
)

// Manager is the QR session surface the handlers drive.
type Manager interface {
	Issue(ctx context.Context, vendorID string) (*models.QRToken, error)
	Validate(ctx context.Context, qrData, customerID string, location *models.Coordinate) (*qr.ValidationResult, error)
	MarkUsed(ctx context.Context, token, customerID string) error
	ListActive(ctx context.Context, vendorID string) ([]models.QRToken, error)
}

// QRHandler holds the dependencies for QR handlers.
type QRHandler struct {
	Manager Manager
}

// NewQRHandler creates a new QRHandler.
func NewQRHandler(manager Manager) *QRHandler {
	return &QRHandler{Manager: manager}
}

// IssueQR creates a token for the vendor.
func (h *QRHandler) IssueQR(w http.ResponseWriter, r *http.Request, vendorID string) {
	qt, err := h.Manager.Issue(r.Context(), vendorID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiQRToken(qt))
}

// ListActiveQR lists the vendor's unexpired tokens.
func (h *QRHandler) ListActiveQR(w http.ResponseWriter, r *http.Request, vendorID string) {
	tokens, err := h.Manager.ListActive(r.Context(), vendorID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	apiTokens := make([]*api.QRToken, len(tokens))
	for i := range tokens {
		apiTokens[i] = mapping.ToApiQRToken(&tokens[i])
	}
	render.JSON(w, http.StatusOK, apiTokens)
}

// ValidateQR checks a scanned payload. Rejections come back as 200 with valid=false;
// only a malformed payload is a 400.
func (h *QRHandler) ValidateQR(w http.ResponseWriter, r *http.Request) {
	var req api.ValidateQRRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	res, err := h.Manager.Validate(r.Context(), req.QrData, req.CustomerId, mapping.ToDomainCoordinate(req.Location))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiValidation(res))
}

// UseQR consumes a token.
func (h *QRHandler) UseQR(w http.ResponseWriter, r *http.Request) {
	var req api.UseQRRequest
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	if err := h.Manager.MarkUsed(r.Context(), req.Token, req.CustomerId); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
