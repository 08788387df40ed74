package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// RepaymentInput describes a repayment against one transaction.
type RepaymentInput struct {
	TransactionID string
	Amount        int64
	// OnTime overrides the due-date comparison when set.
	OnTime        *bool
	PaymentMethod string
}

// RecordRepayment settles a transaction and returns credit to the relation, never beyond its limit.
func (l *Ledger) RecordRepayment(ctx context.Context, in RepaymentInput) (*models.Transaction, error) {
	tx, err := l.recordRepayment(ctx, in)
	if err != nil {
		l.Metrics.IncRepayment(errs.CodeOf(err))
		return nil, err
	}
	l.Metrics.IncRepayment("ok")
	return tx, nil
}

func (l *Ledger) recordRepayment(ctx context.Context, in RepaymentInput) (*models.Transaction, error) {
	if in.Amount <= 0 {
		return nil, errs.ErrInvalidAmount
	}

	tx, err := l.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.PaymentStatus == models.PAID {
		return nil, errs.ErrAlreadyPaid
	}
	key := models.RelationKey{CustomerID: tx.CustomerID, VendorID: tx.VendorID}

	now := l.now()
	onTime := !now.After(tx.DueDate)
	if in.OnTime != nil {
		onTime = *in.OnTime
	}

	retries := l.Policy.RepaymentRetries
	if retries < 1 {
		retries = 1
	}

	var restore int64
	for attempt := 1; ; attempt++ {
		rel, err := l.GetRelation(ctx, key)
		if err != nil {
			return nil, err
		}
		restore = min(in.Amount, rel.UsedCredit)

		err = l.Store.ApplyRepayment(ctx, storage.RepaymentInput{
			Key:             key,
			TransactionID:   tx.TransactionID,
			Amount:          in.Amount,
			Restore:         restore,
			OnTime:          onTime,
			PaymentMethod:   in.PaymentMethod,
			ExpectedVersion: rel.Version,
			Now:             now,
		})
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, storage.ErrTransactionSettled):
			return nil, errs.ErrAlreadyPaid
		case errors.Is(err, storage.ErrVersionConflict):
			if attempt >= retries {
				return nil, errs.ErrConcurrentUpdate
			}
			slog.Log(ctx, slog.LevelDebug, "repayment lost version race, retrying",
				"transaction_id", tx.TransactionID, "attempt", attempt)
		default:
			return nil, errs.Transient("failed to record repayment", err)
		}
	}

	tx.PaymentStatus = models.PAID
	tx.PaidDate = &now
	tx.PaymentMethod = in.PaymentMethod
	tx.RepaidAmount = in.Amount
	tx.UpdatedAt = now

	l.afterChange(ctx, key, tx.TransactionID, restore, "repayment")
	return tx, nil
}
