package storage

import (
	"context"
	"time"

	"github.com/chris/trustline/pkg/models"
)

// TransactionReader defines the interface for reading transaction data.
type TransactionReader interface {
	// GetTransaction retrieves a transaction by its ID. Returns ErrNotFound when absent.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// ListTransactionsByRelation retrieves a relation's transactions, newest first.
	ListTransactionsByRelation(ctx context.Context, key models.RelationKey, limit int32) ([]models.Transaction, error)

	// ListDueTransactions retrieves transactions in the given payment status whose due date is before cutoff.
	ListDueTransactions(ctx context.Context, status models.PaymentStatus, cutoff time.Time) ([]models.Transaction, error)
}

// TransactionSweeper defines the privileged transitions run by the reconciliation job.
type TransactionSweeper interface {
	// MarkOverdue moves a pending transaction to overdue. Returns ErrConditionFailed if it is no longer pending.
	MarkOverdue(ctx context.Context, txID string, now time.Time) error

	// MarkDefaulted stamps defaulted_at on an overdue transaction exactly once.
	// Returns ErrConditionFailed if it was already stamped or is no longer overdue.
	MarkDefaulted(ctx context.Context, txID string, now time.Time) error
}

// TransactionStore combines the transaction interfaces.
type TransactionStore interface {
	TransactionReader
	TransactionSweeper
}
