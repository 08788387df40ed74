// Package qr issues and validates the single-use, time-boxed tokens vendors display as QR codes.
package qr

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/geo"
	"github.com/chris/trustline/pkg/metrics"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// TTL is the fixed lifetime of a QR token.
const TTL = 60 * time.Second

// Store is the data access the manager needs.
type Store interface {
	storage.TokenStore
	storage.VendorReader
	GetRelation(ctx context.Context, key models.RelationKey) (*models.Relation, error)
}

// ValidationResult is the structured outcome of Validate. A failed validation is a
// normal result carrying Code and Reason, not an error.
type ValidationResult struct {
	Valid            bool    `json:"valid"`
	Code             string  `json:"code,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	Token            string  `json:"token,omitempty"`
	VendorID         string  `json:"vendor_id,omitempty"`
	VendorName       string  `json:"vendor_name,omitempty"`
	AvailableCredit  int64   `json:"available_credit,omitempty"`
	LocationVerified bool    `json:"location_verified"`
	DistanceKm       float64 `json:"distance_km"`
}

// Manager implements the QR session protocol.
type Manager struct {
	Store       Store
	Metrics     *metrics.Metrics
	Now         func() time.Time
	Entropy     io.Reader
	ThresholdKm float64
}

// NewManager creates a new Manager with a crypto/rand entropy source.
func NewManager(store Store, m *metrics.Metrics) *Manager {
	return &Manager{
		Store:       store,
		Metrics:     m,
		Now:         time.Now,
		Entropy:     rand.Reader,
		ThresholdKm: geo.DefaultThresholdKm,
	}
}

// Issue creates and persists a new token for vendorID. Earlier tokens of the vendor stay valid until they expire.
func (m *Manager) Issue(ctx context.Context, vendorID string) (*models.QRToken, error) {
	if _, err := m.Store.GetVendor(ctx, vendorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.ErrVendorNotFound
		}
		return nil, errs.Transient("failed to get vendor", err)
	}

	token, err := newToken(m.Entropy)
	if err != nil {
		return nil, err
	}

	now := m.Now().UTC()
	qt := &models.QRToken{
		Token:     token,
		VendorID:  vendorID,
		QRData:    BuildPayload(vendorID, token),
		CreatedAt: now,
		ExpiresAt: expiresAt(now),
	}
	if err := m.Store.PutToken(ctx, qt); err != nil {
		return nil, errs.Transient("failed to store qr token", err)
	}

	m.Metrics.IncQRIssued()
	slog.Log(ctx, slog.LevelDebug, "qr token issued", "vendor_id", vendorID, "expires_at", qt.ExpiresAt)
	return qt, nil
}

// Validate checks a scanned payload for customerID without consuming the token.
// Only malformed input or a store failure is returned as an error.
func (m *Manager) Validate(ctx context.Context, qrData, customerID string, location *models.Coordinate) (*ValidationResult, error) {
	vendorID, token, err := ParsePayload(qrData)
	if err == nil && location != nil && !geo.Valid(*location) {
		err = errs.ErrInvalidCoordinates
	}
	if err != nil {
		m.Metrics.IncQRValidation(errs.CodeOf(err))
		return nil, err
	}

	res, err := m.validate(ctx, vendorID, token, customerID, location)
	if err != nil {
		return nil, err
	}
	if res.Valid {
		m.Metrics.IncQRValidation("valid")
	} else {
		m.Metrics.IncQRValidation(res.Code)
	}
	return res, nil
}

func (m *Manager) validate(ctx context.Context, vendorID, token, customerID string, location *models.Coordinate) (*ValidationResult, error) {
	res := &ValidationResult{Token: token, VendorID: vendorID}

	qt, err := m.Store.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(res, errs.ErrTokenNotFound), nil
		}
		return nil, errs.Transient("failed to get qr token", err)
	}
	// A token presented under another vendor's id is treated as unknown.
	if qt.VendorID != vendorID {
		return reject(res, errs.ErrTokenNotFound), nil
	}
	if qt.Used {
		return reject(res, errs.ErrTokenAlreadyUsed), nil
	}
	if qt.Expired(m.Now()) {
		return reject(res, errs.ErrTokenExpired), nil
	}

	vendor, err := m.Store.GetVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(res, errs.ErrVendorNotFound), nil
		}
		return nil, errs.Transient("failed to get vendor", err)
	}
	res.VendorName = vendor.Name

	if location != nil && vendor.Location != nil {
		p := geo.VerifyProximity(location, vendor.Location, m.ThresholdKm)
		res.DistanceKm = p.DistanceKm
		res.LocationVerified = p.Verified
		if !p.Verified {
			return reject(res, errs.ErrTooFar.WithMessage("%s: %.3f km", p.Reason, p.DistanceKm)), nil
		}
	}

	rel, err := m.Store.GetRelation(ctx, models.RelationKey{CustomerID: customerID, VendorID: vendorID})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(res, errs.ErrNoActiveCreditLine), nil
		}
		return nil, errs.Transient("failed to get relation", err)
	}
	if rel.Status != models.ACTIVE {
		return reject(res, errs.ErrNoActiveCreditLine.WithMessage("credit line is %s", rel.Status)), nil
	}

	res.Valid = true
	res.VendorName = rel.VendorName
	if res.VendorName == "" {
		res.VendorName = vendor.Name
	}
	res.AvailableCredit = rel.AvailableCredit
	return res, nil
}

// MarkUsed consumes token for customerID. Of any number of concurrent calls for one token
// at most one succeeds; the rest get ErrTokenAlreadyConsumed.
func (m *Manager) MarkUsed(ctx context.Context, token, customerID string) error {
	now := m.Now()
	err := m.Store.MarkTokenUsed(ctx, token, customerID, now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrConditionFailed) {
		return errs.Transient("failed to mark qr token used", err)
	}

	qt, getErr := m.Store.GetToken(ctx, token)
	switch {
	case errors.Is(getErr, storage.ErrNotFound):
		return errs.ErrTokenNotFound
	case getErr != nil:
		return errs.ErrTokenAlreadyConsumed
	case !qt.Used && qt.Expired(now):
		return errs.ErrTokenExpired
	default:
		return errs.ErrTokenAlreadyConsumed
	}
}

// ListActive returns the vendor's tokens that have not expired yet.
func (m *Manager) ListActive(ctx context.Context, vendorID string) ([]models.QRToken, error) {
	tokens, err := m.Store.ListActiveTokens(ctx, vendorID, m.Now())
	if err != nil {
		return nil, errs.Transient("failed to list qr tokens", err)
	}
	return tokens, nil
}

// expiresAt rounds the end of the TTL up to a whole second, the resolution expiry is stored at,
// so a token never lives shorter than TTL.
func expiresAt(issued time.Time) time.Time {
	end := issued.Add(TTL)
	if rounded := end.Truncate(time.Second); rounded.Before(end) {
		return rounded.Add(time.Second)
	}
	return end
}

func reject(res *ValidationResult, e *errs.Error) *ValidationResult {
	res.Valid = false
	res.Code = e.Code
	res.Reason = e.Message
	return res
}
