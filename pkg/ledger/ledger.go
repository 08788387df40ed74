// Package ledger owns the customer-vendor credit relation lifecycle: registration,
// draws, repayments, defaults and status changes.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/metrics"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
	"github.com/chris/trustline/pkg/trustscore"
	"github.com/chris/trustline/pkg/websockets"
	"github.com/google/uuid"
)

// Policy holds the configurable credit rules.
type Policy struct {
	// DefaultCreditLimit applies when the vendor has no override. Minor currency units.
	DefaultCreditLimit int64
	// SuspendThreshold suspends an active relation once its default count exceeds it.
	SuspendThreshold int64
	// RepaymentTerm is added to a draw's creation time to get its due date.
	RepaymentTerm time.Duration
	// DefaultGrace is how long a transaction may stay overdue before it counts as a default.
	DefaultGrace time.Duration
	// ProximityKm is the geofence radius enforced when a draw carries both locations.
	ProximityKm float64
	// RepaymentRetries bounds the optimistic-lock retries of a repayment.
	RepaymentRetries int
}

// DefaultPolicy returns the reference credit rules.
func DefaultPolicy() Policy {
	return Policy{
		DefaultCreditLimit: 50000,
		SuspendThreshold:   2,
		RepaymentTerm:      30 * 24 * time.Hour,
		DefaultGrace:       30 * 24 * time.Hour,
		ProximityKm:        0.5,
		RepaymentRetries:   3,
	}
}

// Store is the data access the ledger needs.
type Store interface {
	storage.LedgerStore
	GetToken(ctx context.Context, token string) (*models.QRToken, error)
}

// Ledger implements the credit ledger operations.
type Ledger struct {
	Store     Store
	Scorer    trustscore.Trigger
	Publisher websockets.Publisher
	Metrics   *metrics.Metrics
	Policy    Policy
	Now       func() time.Time
	NewID     func() string
}

// New creates a new Ledger. A nil scorer or publisher disables that side effect.
func New(store Store, scorer trustscore.Trigger, publisher websockets.Publisher, m *metrics.Metrics, policy Policy) *Ledger {
	if scorer == nil {
		scorer = trustscore.NoOpTrigger{}
	}
	if publisher == nil {
		publisher = &websockets.NoOpPublisher{}
	}
	return &Ledger{
		Store:     store,
		Scorer:    scorer,
		Publisher: publisher,
		Metrics:   m,
		Policy:    policy,
		Now:       time.Now,
		NewID:     func() string { return uuid.New().String() },
	}
}

func (l *Ledger) now() time.Time {
	return l.Now().UTC()
}

// GetRelation retrieves a relation.
func (l *Ledger) GetRelation(ctx context.Context, key models.RelationKey) (*models.Relation, error) {
	rel, err := l.Store.GetRelation(ctx, key)
	if err != nil {
		return nil, mapNotFound(err, errs.ErrRelationNotFound, "failed to get relation")
	}
	return rel, nil
}

// GetTransaction retrieves a transaction.
func (l *Ledger) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	tx, err := l.Store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, mapNotFound(err, errs.ErrTransactionNotFound, "failed to get transaction")
	}
	return tx, nil
}

// ListTransactions lists a relation's transactions, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, key models.RelationKey, limit int32) ([]models.Transaction, error) {
	txs, err := l.Store.ListTransactionsByRelation(ctx, key, limit)
	if err != nil {
		return nil, errs.Transient("failed to list transactions", err)
	}
	return txs, nil
}

// Dashboard is a relation together with its most recent transactions.
type Dashboard struct {
	Relation     *models.Relation
	Transactions []models.Transaction
}

// Dashboard returns the relation and its recent transactions.
func (l *Ledger) Dashboard(ctx context.Context, key models.RelationKey, limit int32) (*Dashboard, error) {
	rel, err := l.GetRelation(ctx, key)
	if err != nil {
		return nil, err
	}
	txs, err := l.ListTransactions(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Relation: rel, Transactions: txs}, nil
}

// afterChange runs the best-effort side effects of a balance change.
func (l *Ledger) afterChange(ctx context.Context, key models.RelationKey, txID string, change int64, reason string) {
	l.Scorer.Trigger(ctx, key, reason)

	rel, err := l.Store.GetRelation(ctx, key)
	if err != nil {
		slog.Log(ctx, slog.LevelError, "failed to get relation for websocket message", "error", err)
		return
	}
	msg := websockets.Message{
		Type: websockets.MessageTypeCreditUpdate,
		Payload: websockets.CreditUpdatePayload{
			CustomerID:      key.CustomerID,
			VendorID:        key.VendorID,
			TransactionID:   txID,
			Change:          change,
			AvailableCredit: rel.AvailableCredit,
			TrustScore:      rel.TrustScore,
		},
	}
	if err := l.Publisher.Publish(ctx, msg); err != nil {
		slog.Log(ctx, slog.LevelError, "failed to publish websocket message", "error", err)
	}
}

func mapNotFound(err error, notFound *errs.Error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	return errs.Transient(message, err)
}

func statusError(status models.RelationStatus) error {
	switch status {
	case models.SUSPENDED:
		return errs.ErrRelationSuspended
	case models.BLOCKED:
		return errs.ErrRelationBlocked
	}
	return nil
}
