package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/geo"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// DrawInput describes a credit-funded purchase.
type DrawInput struct {
	CustomerID  string
	VendorID    string
	Amount      int64
	Description string
	// QRToken, when set, is consumed atomically with the draw.
	QRToken          string
	CustomerLocation *models.Coordinate
}

// DrawCredit records a purchase against the relation's available credit. The balance check
// and the debit are one conditional write, so concurrent draws can never overdraw a relation.
func (l *Ledger) DrawCredit(ctx context.Context, in DrawInput) (*models.Transaction, error) {
	tx, err := l.drawCredit(ctx, in)
	if err != nil {
		l.Metrics.IncDraw(errs.CodeOf(err))
		return nil, err
	}
	l.Metrics.IncDraw("ok")
	return tx, nil
}

func (l *Ledger) drawCredit(ctx context.Context, in DrawInput) (*models.Transaction, error) {
	if in.Amount <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	if in.CustomerLocation != nil && !geo.Valid(*in.CustomerLocation) {
		return nil, errs.ErrInvalidCoordinates
	}
	key := models.RelationKey{CustomerID: in.CustomerID, VendorID: in.VendorID}

	rel, err := l.GetRelation(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := statusError(rel.Status); err != nil {
		return nil, err
	}
	if in.Amount > rel.AvailableCredit {
		return nil, errs.ErrInsufficientCredit.WithMessage("amount %d exceeds available credit %d", in.Amount, rel.AvailableCredit)
	}

	now := l.now()
	tx := &models.Transaction{
		TransactionID:    l.NewID(),
		CustomerID:       in.CustomerID,
		VendorID:         in.VendorID,
		RelationKey:      key.String(),
		Amount:           in.Amount,
		TransactionType:  models.TransactionTypeCreditPurchase,
		Description:      in.Description,
		PaymentStatus:    models.PENDING,
		DueDate:          now.Add(l.Policy.RepaymentTerm),
		CustomerLocation: in.CustomerLocation,
		QRToken:          in.QRToken,
		ScanMethod:       models.ScanManual,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.QRToken != "" {
		tx.ScanMethod = models.ScanQR
	}

	if in.CustomerLocation != nil {
		vendor, err := l.Store.GetVendor(ctx, in.VendorID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, errs.Transient("failed to get vendor", err)
		}
		if vendor != nil && vendor.Location != nil {
			p := geo.VerifyProximity(in.CustomerLocation, vendor.Location, l.Policy.ProximityKm)
			if !p.Verified {
				return nil, errs.ErrTooFar.WithMessage("%s: %.3f km", p.Reason, p.DistanceKm)
			}
			tx.VendorLocation = vendor.Location
			tx.DistanceKm = p.DistanceKm
			tx.LocationVerified = true
		}
	}

	slog.Log(ctx, slog.LevelDebug, "drawing credit", "transaction", tx)

	err = l.Store.ApplyDraw(ctx, storage.DrawInput{
		Key:         key,
		Amount:      in.Amount,
		Transaction: tx,
		Token:       in.QRToken,
		Now:         now,
	})
	if err != nil {
		return nil, l.classifyDrawFailure(ctx, key, in, err)
	}

	l.afterChange(ctx, key, tx.TransactionID, -tx.Amount, "draw")
	return tx, nil
}

// classifyDrawFailure re-reads the records a cancelled draw depended on to name the reason.
func (l *Ledger) classifyDrawFailure(ctx context.Context, key models.RelationKey, in DrawInput, err error) error {
	switch {
	case errors.Is(err, storage.ErrBalanceCheckFailed):
		rel, getErr := l.Store.GetRelation(ctx, key)
		if getErr != nil {
			return mapNotFound(getErr, errs.ErrRelationNotFound, "failed to get relation")
		}
		if serr := statusError(rel.Status); serr != nil {
			return serr
		}
		return errs.ErrInsufficientCredit.WithMessage("amount %d exceeds available credit %d", in.Amount, rel.AvailableCredit)

	case errors.Is(err, storage.ErrTokenCheckFailed):
		qt, getErr := l.Store.GetToken(ctx, in.QRToken)
		switch {
		case errors.Is(getErr, storage.ErrNotFound):
			return errs.ErrTokenNotFound
		case getErr != nil:
			return errs.Transient("failed to get qr token", getErr)
		case qt.VendorID != in.VendorID:
			return errs.ErrTokenNotFound
		case qt.Used:
			return errs.ErrTokenAlreadyConsumed
		default:
			return errs.ErrTokenExpired
		}

	case errors.Is(err, storage.ErrAlreadyExists):
		return errs.ErrConcurrentUpdate.WithMessage("transaction id collision")
	}
	return errs.Transient("failed to draw credit", err)
}
