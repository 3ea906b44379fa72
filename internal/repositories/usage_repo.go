package repositories

import (
	"context"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
)

// ChargeMeta is the last-use metadata stamped onto a token on admission.
type ChargeMeta struct {
	IPAddress string
	UserAgent string
}

// UsageRepository owns the quota-critical storage path. AdmitAndCharge must be
// atomic: the ceiling comparison and the increment happen in one conditional
// statement inside one transaction, never as separate application-level steps.
type UsageRepository interface {
	// AdmitAndCharge lazily creates the (account, day) counter, then performs
	// a conditional increment gated on ceiling. On admission it also bumps the
	// token's daily/lifetime usage and last-use metadata in the same
	// transaction and returns (usedAfterCharge, true, nil). When the ceiling
	// is already consumed it returns (currentUsage, false, nil) and increments
	// the counter's overflow tally.
	AdmitAndCharge(ctx context.Context, accountID, tokenID string, day time.Time, ceiling int, meta ChargeMeta) (int, bool, error)

	// RecordOutcome updates the counter's succeeded/failed split and
	// cumulative latency once the downstream call finishes. Best-effort.
	RecordOutcome(ctx context.Context, accountID string, day time.Time, succeeded bool, latency time.Duration) error

	// GetCounter reads one (account, day) counter.
	GetCounter(ctx context.Context, accountID string, day time.Time) (*models.UsageCounter, error)
}
