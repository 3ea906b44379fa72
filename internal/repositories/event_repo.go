package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hmarchena/gatewarden/internal/models"
)

// EventRepository defines data access for the two append-only audit tables.
// Inserts are write-once; the only later mutation allowed on a security event
// is the operator's resolved annotation.
type EventRepository interface {
	// InsertEvent appends a security event.
	InsertEvent(ctx context.Context, event *models.SecurityEvent) error

	// InsertAttack appends an attack attempt.
	InsertAttack(ctx context.Context, attempt *models.AttackAttempt) error

	// CountAttacksSince counts attack attempts from one address in the
	// trailing window, for the auto-block threshold.
	CountAttacksSince(ctx context.Context, ipAddress string, since time.Time) (int, error)

	// ListEvents returns security events, newest first.
	ListEvents(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error)

	// ListAttacks returns attack attempts, newest first.
	ListAttacks(ctx context.Context, limit, offset int) ([]*models.AttackAttempt, error)

	// ResolveEvent annotates an event with a resolved flag and investigator.
	// The original fact fields stay untouched.
	ResolveEvent(ctx context.Context, id uuid.UUID, investigator string) error
}
