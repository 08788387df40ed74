package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
	"github.com/chris/trustline/pkg/trustscore"
)

// RegisterInput describes a new credit relation.
type RegisterInput struct {
	CustomerPhone string
	CustomerName  string
	VendorID      string
	VendorName    string
	// RequestedLimit lowers the granted limit when set. It can never raise it above policy.
	RequestedLimit *int64
}

// RegisterRelation opens a credit line between a customer phone and a vendor.
func (l *Ledger) RegisterRelation(ctx context.Context, in RegisterInput) (*models.Relation, error) {
	phone := strings.TrimSpace(in.CustomerPhone)
	if phone == "" {
		return nil, &errs.Error{Kind: errs.KindValidation, Code: "INVALID_PHONE", Message: "customer phone is required"}
	}
	if in.RequestedLimit != nil && *in.RequestedLimit <= 0 {
		return nil, errs.ErrInvalidAmount.WithMessage("requested limit must be greater than zero")
	}

	vendor, err := l.Store.GetVendor(ctx, in.VendorID)
	if err != nil {
		return nil, mapNotFound(err, errs.ErrVendorNotFound, "failed to get vendor")
	}

	_, err = l.Store.FindRelationByPhone(ctx, phone, in.VendorID)
	switch {
	case err == nil:
		return nil, errs.ErrDuplicateRelation
	case !errors.Is(err, storage.ErrNotFound):
		return nil, errs.Transient("failed to look up relation", err)
	}

	now := l.now()
	customer, err := l.Store.EnsureCustomer(ctx, &models.Customer{
		Phone:      phone,
		CustomerID: l.NewID(),
		Name:       in.CustomerName,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, errs.Transient("failed to ensure customer", err)
	}

	limit := l.Policy.DefaultCreditLimit
	if vendor.CreditLimitOverride != nil {
		limit = *vendor.CreditLimitOverride
	}
	if in.RequestedLimit != nil && *in.RequestedLimit < limit {
		limit = *in.RequestedLimit
	}

	vendorName := in.VendorName
	if vendorName == "" {
		vendorName = vendor.Name
	}

	rel := &models.Relation{
		CustomerID:        customer.CustomerID,
		VendorID:          in.VendorID,
		CustomerPhone:     phone,
		CustomerName:      in.CustomerName,
		VendorName:        vendorName,
		CreditLimit:       limit,
		AvailableCredit:   limit,
		TrustScore:        trustscore.InitialScore,
		TrustScoreHistory: []models.ScoreEntry{},
		Status:            models.ACTIVE,
		AutoApproved:      true,
		KYCVerified:       false,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := l.Store.CreateRelation(ctx, rel); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, errs.ErrDuplicateRelation
		}
		return nil, errs.Transient("failed to create relation", err)
	}

	slog.Log(ctx, slog.LevelInfo, "credit relation registered",
		"customer_id", rel.CustomerID, "vendor_id", rel.VendorID, "credit_limit", rel.CreditLimit)
	return rel, nil
}

// Existence is the result of CheckExists.
type Existence struct {
	Exists     bool
	CustomerID string
}

// CheckExists reports whether phone already holds a relation with vendorID.
func (l *Ledger) CheckExists(ctx context.Context, phone, vendorID string) (Existence, error) {
	rel, err := l.Store.FindRelationByPhone(ctx, strings.TrimSpace(phone), vendorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Existence{}, nil
		}
		return Existence{}, errs.Transient("failed to look up relation", err)
	}
	return Existence{Exists: true, CustomerID: rel.CustomerID}, nil
}
