package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// ReconcileReport counts what one sweep changed.
type ReconcileReport struct {
	Overdue   int
	Defaulted int
	Failed    int
}

// Reconcile marks pending transactions past their due date as overdue, and records a default
// once for every transaction that stayed overdue longer than the grace period.
// A failure on one transaction does not stop the sweep.
func (l *Ledger) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := l.now()

	pending, err := l.Store.ListDueTransactions(ctx, models.PENDING, now)
	if err != nil {
		return report, errs.Transient("failed to list due transactions", err)
	}
	for _, tx := range pending {
		err := l.Store.MarkOverdue(ctx, tx.TransactionID, now)
		switch {
		case err == nil:
			report.Overdue++
			l.Metrics.IncReconciliation("overdue")
		case errors.Is(err, storage.ErrConditionFailed):
			// Paid between the query and the update.
		default:
			report.Failed++
			slog.Log(ctx, slog.LevelError, "failed to mark transaction overdue", "transaction_id", tx.TransactionID, "error", err)
		}
	}

	overdue, err := l.Store.ListDueTransactions(ctx, models.OVERDUE, now.Add(-l.Policy.DefaultGrace))
	if err != nil {
		return report, errs.Transient("failed to list overdue transactions", err)
	}
	for _, tx := range overdue {
		if tx.DefaultedAt != nil {
			continue
		}
		err := l.Store.MarkDefaulted(ctx, tx.TransactionID, now)
		if errors.Is(err, storage.ErrConditionFailed) {
			continue
		}
		if err != nil {
			report.Failed++
			slog.Log(ctx, slog.LevelError, "failed to mark transaction defaulted", "transaction_id", tx.TransactionID, "error", err)
			continue
		}
		if _, err := l.MarkDefault(ctx, models.RelationKey{CustomerID: tx.CustomerID, VendorID: tx.VendorID}); err != nil {
			report.Failed++
			slog.Log(ctx, slog.LevelError, "failed to record relation default", "transaction_id", tx.TransactionID, "error", err)
			continue
		}
		report.Defaulted++
		l.Metrics.IncReconciliation("defaulted")
	}

	slog.Log(ctx, slog.LevelInfo, "reconciliation finished",
		"overdue", report.Overdue, "defaulted", report.Defaulted, "failed", report.Failed)
	return report, nil
}
