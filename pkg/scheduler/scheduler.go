package scheduler

import (
	"context"
	"time"
)

// RecomputeRequest asks the scoring worker to recompute one relation's trust score.
type RecomputeRequest struct {
	CustomerID  string    `json:"customer_id"`
	VendorID    string    `json:"vendor_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Scheduler defines the interface for a component that schedules a recompute for later processing.
type Scheduler interface {
	// ScheduleRecompute enqueues a recompute request for asynchronous processing.
	ScheduleRecompute(ctx context.Context, req *RecomputeRequest) error
}
