package repositories

import (
	"context"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
)

// BlockRepository defines data access for the block registry. Rows are keyed
// by address and never deleted; repeat blocks extend the existing row.
type BlockRepository interface {
	// Get retrieves the row for an address whether or not the block is still
	// active. models.ErrNotFound when the address was never blocked.
	Get(ctx context.Context, ipAddress string) (*models.BlockedAddress, error)

	// Upsert creates or extends a block. An existing row keeps its kind, gets
	// its expiry extended (never shortened), and has its failed-attempt and
	// times-blocked counters incremented. Returns the row after the write.
	Upsert(ctx context.Context, block *models.BlockedAddress) (*models.BlockedAddress, error)

	// TouchAttempt bumps failed_attempts and last_attempt_at on an existing
	// row without extending the block.
	TouchAttempt(ctx context.Context, ipAddress string, at time.Time) error

	// List returns block rows, most recently attacked first.
	List(ctx context.Context, limit, offset int) ([]*models.BlockedAddress, error)
}
