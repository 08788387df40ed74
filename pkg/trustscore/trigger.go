package trustscore

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/scheduler"
)

// Trigger requests a recompute after a state change. Implementations never fail the caller.
type Trigger interface {
	Trigger(ctx context.Context, key models.RelationKey, reason string)
}

// SyncTrigger recomputes in the calling goroutine.
type SyncTrigger struct {
	Engine *Engine
}

// Trigger runs the engine and logs failures.
func (t *SyncTrigger) Trigger(ctx context.Context, key models.RelationKey, reason string) {
	if _, err := t.Engine.Recompute(ctx, key); err != nil {
		slog.Log(ctx, slog.LevelError, "synchronous trust score recompute failed",
			"customer_id", key.CustomerID, "vendor_id", key.VendorID, "reason", reason, "error", err)
	}
}

// QueueTrigger hands the recompute to the asynchronous scoring worker.
type QueueTrigger struct {
	Scheduler scheduler.Scheduler
	Now       func() time.Time
}

// Trigger enqueues a recompute request and logs failures.
func (t *QueueTrigger) Trigger(ctx context.Context, key models.RelationKey, reason string) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	req := &scheduler.RecomputeRequest{
		CustomerID:  key.CustomerID,
		VendorID:    key.VendorID,
		Reason:      reason,
		RequestedAt: now(),
	}
	if err := t.Scheduler.ScheduleRecompute(ctx, req); err != nil {
		slog.Log(ctx, slog.LevelError, "failed to enqueue trust score recompute",
			"customer_id", key.CustomerID, "vendor_id", key.VendorID, "reason", reason, "error", err)
	}
}

// NoOpTrigger drops recompute requests.
type NoOpTrigger struct{}

// Trigger does nothing.
func (NoOpTrigger) Trigger(context.Context, models.RelationKey, string) {}
