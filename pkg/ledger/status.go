package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// transitions lists the allowed status changes. Blocked is terminal.
var transitions = map[models.RelationStatus][]models.RelationStatus{
	models.ACTIVE:    {models.SUSPENDED, models.BLOCKED},
	models.SUSPENDED: {models.ACTIVE, models.BLOCKED},
}

// CanTransition reports whether a relation may move from one status to another.
func CanTransition(from, to models.RelationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// MarkDefault records a default event and suspends the relation once its defaults exceed policy.
func (l *Ledger) MarkDefault(ctx context.Context, key models.RelationKey) (*models.Relation, error) {
	now := l.now()
	rel, err := l.Store.IncrementDefaults(ctx, key, now)
	if err != nil {
		return nil, mapNotFound(err, errs.ErrRelationNotFound, "failed to record default")
	}

	if rel.DefaultCount > l.Policy.SuspendThreshold && rel.Status == models.ACTIVE {
		err := l.Store.UpdateStatus(ctx, key, models.ACTIVE, models.SUSPENDED, now)
		switch {
		case err == nil:
			rel.Status = models.SUSPENDED
			slog.Log(ctx, slog.LevelWarn, "credit relation suspended after repeated defaults",
				"customer_id", key.CustomerID, "vendor_id", key.VendorID, "default_count", rel.DefaultCount)
		case errors.Is(err, storage.ErrConditionFailed):
			// Someone else moved the relation out of active first.
		default:
			return nil, errs.Transient("failed to suspend relation", err)
		}
	}

	l.Scorer.Trigger(ctx, key, "default")
	return rel, nil
}

// SetStatus applies an administrative status change. Setting the current status is a no-op.
func (l *Ledger) SetStatus(ctx context.Context, key models.RelationKey, to models.RelationStatus) (*models.Relation, error) {
	rel, err := l.GetRelation(ctx, key)
	if err != nil {
		return nil, err
	}
	if rel.Status == to {
		return rel, nil
	}
	if !CanTransition(rel.Status, to) {
		return nil, errs.ErrInvalidTransition.WithMessage("cannot move relation from %s to %s", rel.Status, to)
	}

	now := l.now()
	if err := l.Store.UpdateStatus(ctx, key, rel.Status, to, now); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, errs.ErrConcurrentUpdate
		}
		return nil, errs.Transient("failed to update relation status", err)
	}

	slog.Log(ctx, slog.LevelInfo, "credit relation status changed",
		"customer_id", key.CustomerID, "vendor_id", key.VendorID, "from", rel.Status, "to", to)
	rel.Status = to
	rel.UpdatedAt = now
	return rel, nil
}

// ProfileUpdate carries the dashboard-editable fields of a relation.
type ProfileUpdate struct {
	CustomerName string
	KYCVerified  bool
}

// UpdateProfile edits a relation's profile. Blocked relations reject it.
func (l *Ledger) UpdateProfile(ctx context.Context, key models.RelationKey, upd ProfileUpdate) (*models.Relation, error) {
	rel, err := l.GetRelation(ctx, key)
	if err != nil {
		return nil, err
	}
	if rel.Status == models.BLOCKED {
		return nil, errs.ErrRelationBlocked
	}

	if err := l.Store.UpdateProfile(ctx, key, upd.CustomerName, upd.KYCVerified, l.now()); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, errs.ErrRelationBlocked
		}
		return nil, errs.Transient("failed to update relation profile", err)
	}
	return l.GetRelation(ctx, key)
}
