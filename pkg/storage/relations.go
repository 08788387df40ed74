package storage

import (
	"context"
	"time"

	"github.com/chris/trustline/pkg/models"
)

// RelationReader defines the interface for reading credit relations.
type RelationReader interface {
	// GetRelation retrieves a relation by its (customer, vendor) key. Returns ErrNotFound when absent.
	GetRelation(ctx context.Context, key models.RelationKey) (*models.Relation, error)

	// FindRelationByPhone retrieves the relation a phone number holds with a vendor.
	FindRelationByPhone(ctx context.Context, phone, vendorID string) (*models.Relation, error)

	// CountActiveRelationsByPhone counts active relations sharing a phone number across all vendors.
	CountActiveRelationsByPhone(ctx context.Context, phone string) (int, error)
}

// DrawInput is a single atomic credit draw.
type DrawInput struct {
	Key         models.RelationKey
	Amount      int64
	Transaction *models.Transaction
	// Token, when set, must be an unused, unexpired token of Key.VendorID and is consumed by the draw.
	Token string
	Now   time.Time
}

// RepaymentInput is a single atomic repayment against an open transaction.
type RepaymentInput struct {
	Key           models.RelationKey
	TransactionID string
	Amount        int64
	// Restore is the amount returned to available credit, never more than the relation's used credit.
	Restore         int64
	OnTime          bool
	PaymentMethod   string
	ExpectedVersion int64
	Now             time.Time
}

// RelationWriter defines the interface for mutating credit relations.
type RelationWriter interface {
	// CreateRelation inserts a relation if none exists for its key. Returns ErrAlreadyExists otherwise.
	CreateRelation(ctx context.Context, rel *models.Relation) error

	// ApplyDraw debits the relation, inserts the transaction and optionally consumes a QR token
	// as one atomic unit. Returns ErrBalanceCheckFailed or ErrTokenCheckFailed when cancelled.
	ApplyDraw(ctx context.Context, in DrawInput) error

	// ApplyRepayment restores credit and settles the transaction as one atomic unit.
	// Returns ErrVersionConflict or ErrTransactionSettled when cancelled.
	ApplyRepayment(ctx context.Context, in RepaymentInput) error

	// IncrementDefaults adds one to the relation's default count and returns the updated relation.
	IncrementDefaults(ctx context.Context, key models.RelationKey, now time.Time) (*models.Relation, error)

	// UpdateStatus moves the relation from one status to another. Returns ErrConditionFailed
	// when the relation is not currently in the from status.
	UpdateStatus(ctx context.Context, key models.RelationKey, from, to models.RelationStatus, now time.Time) error

	// UpdateProfile changes the customer-facing fields of a relation that is not blocked.
	// Returns ErrConditionFailed when the relation is blocked.
	UpdateProfile(ctx context.Context, key models.RelationKey, customerName string, kycVerified bool, now time.Time) error

	// AppendScore sets the trust score and appends it to the relation's score history.
	AppendScore(ctx context.Context, key models.RelationKey, entry models.ScoreEntry) error
}

// RelationStore combines the reader and writer interfaces.
type RelationStore interface {
	RelationReader
	RelationWriter
}
