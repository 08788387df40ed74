package storage

import (
	"context"
	"time"

	"github.com/chris/trustline/pkg/models"
)

// TokenStore defines the interface for QR session tokens.
type TokenStore interface {
	// PutToken inserts a token if it does not already exist.
	PutToken(ctx context.Context, token *models.QRToken) error

	// GetToken retrieves a token. Returns ErrNotFound when absent.
	GetToken(ctx context.Context, token string) (*models.QRToken, error)

	// MarkTokenUsed flips used from false to true if the token exists and has not expired at now.
	// Returns ErrConditionFailed when no record matched.
	MarkTokenUsed(ctx context.Context, token, customerID string, now time.Time) error

	// ListActiveTokens retrieves a vendor's unexpired tokens.
	ListActiveTokens(ctx context.Context, vendorID string, now time.Time) ([]models.QRToken, error)
}
