package repositories

import (
	"context"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
)

// TokenRepository defines data access for issued API tokens.
type TokenRepository interface {
	// Create stores a new token row.
	Create(ctx context.Context, token *models.APIToken) error

	// GetActiveByDigest resolves a digest to a token whose own status AND
	// owner's status are both active, returning the owner's role alongside.
	// Any miss (unknown digest, revoked token, suspended owner) is the same
	// models.ErrNotFound so callers cannot distinguish the cases.
	GetActiveByDigest(ctx context.Context, digest string) (*models.APIToken, string, error)

	// GetByID retrieves a token regardless of status.
	GetByID(ctx context.Context, id string) (*models.APIToken, error)

	// ListByAccount retrieves all tokens for an owner, newest first.
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.APIToken, error)

	// Revoke transitions an active token to revoked.
	Revoke(ctx context.Context, id string) error

	// MarkExpired transitions a token to expired.
	MarkExpired(ctx context.Context, id string) error

	// ExpireDue bulk-transitions active tokens whose expiry has passed.
	// Returns the number of rows transitioned.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
