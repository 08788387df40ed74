package trustscore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/metrics"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// Store is the data access the engine needs.
type Store interface {
	GetRelation(ctx context.Context, key models.RelationKey) (*models.Relation, error)
	CountActiveRelationsByPhone(ctx context.Context, phone string) (int, error)
	AppendScore(ctx context.Context, key models.RelationKey, entry models.ScoreEntry) error
}

// Engine recomputes and persists trust scores.
type Engine struct {
	Store   Store
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// NewEngine creates a new Engine.
func NewEngine(store Store, m *metrics.Metrics) *Engine {
	return &Engine{Store: store, Metrics: m, Now: time.Now}
}

// Recompute loads the relation, computes its score and appends it to the history.
// On any failure after the relation was loaded, the previously persisted score is returned
// alongside the error so callers can carry on with it.
func (e *Engine) Recompute(ctx context.Context, key models.RelationKey) (score int, err error) {
	rel, err := e.Store.GetRelation(ctx, key)
	if err != nil {
		e.Metrics.ObserveScore("error", 0)
		if errors.Is(err, storage.ErrNotFound) {
			return 0, errs.ErrRelationNotFound
		}
		return 0, errs.Transient("failed to load relation for scoring", err)
	}
	previous := rel.TrustScore

	defer func() {
		if r := recover(); r != nil {
			score = previous
			err = fmt.Errorf("trust score computation panicked: %v", r)
		}
		if err != nil {
			e.Metrics.ObserveScore("error", 0)
			slog.Log(ctx, slog.LevelWarn, "trust score recompute failed, keeping previous score",
				"customer_id", key.CustomerID, "vendor_id", key.VendorID, "score", previous, "error", err)
		}
	}()

	active, err := e.Store.CountActiveRelationsByPhone(ctx, rel.CustomerPhone)
	if err != nil {
		return previous, errs.Transient("failed to count active relations", err)
	}

	now := e.Now()
	score = Compute(rel, active, now)

	if err := e.Store.AppendScore(ctx, key, models.ScoreEntry{Score: score, CalculatedAt: now}); err != nil {
		return previous, errs.Transient("failed to persist trust score", err)
	}

	e.Metrics.ObserveScore("ok", score)
	slog.Log(ctx, slog.LevelDebug, "trust score recomputed",
		"customer_id", key.CustomerID, "vendor_id", key.VendorID, "previous", previous, "score", score)
	return score, nil
}
