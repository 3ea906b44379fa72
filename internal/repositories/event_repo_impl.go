package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hmarchena/gatewarden/internal/database"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepositoryImpl implements EventRepository on pgx.
type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *database.DB) EventRepository {
	return &EventRepositoryImpl{pool: db.Pool}
}

// InsertEvent appends a security event.
func (r *EventRepositoryImpl) InsertEvent(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (ip_address, account_id, token_id, category,
			severity, endpoint, fragment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		event.IPAddress,
		event.AccountID,
		event.TokenID,
		event.Category,
		event.Severity,
		event.Endpoint,
		event.Fragment,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// InsertAttack appends an attack attempt.
func (r *EventRepositoryImpl) InsertAttack(ctx context.Context, attempt *models.AttackAttempt) error {
	query := `
		INSERT INTO attack_attempts (ip_address, category, severity, payload,
			payload_digest, endpoint, method, triggered_block)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.IPAddress,
		attempt.Category,
		attempt.Severity,
		attempt.Payload,
		attempt.PayloadDigest,
		attempt.Endpoint,
		attempt.Method,
		attempt.TriggeredBlock,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// CountAttacksSince counts attack attempts from one address in the window.
func (r *EventRepositoryImpl) CountAttacksSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM attack_attempts
		WHERE ip_address = $1 AND created_at >= $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ListEvents returns security events, newest first.
func (r *EventRepositoryImpl) ListEvents(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, ip_address, account_id, token_id, category, severity, endpoint,
		       fragment, resolved, resolved_by, resolved_at, created_at
		FROM security_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)
	for rows.Next() {
		var e models.SecurityEvent
		err := rows.Scan(
			&e.ID, &e.IPAddress, &e.AccountID, &e.TokenID, &e.Category, &e.Severity,
			&e.Endpoint, &e.Fragment, &e.Resolved, &e.ResolvedBy, &e.ResolvedAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

// ListAttacks returns attack attempts, newest first.
func (r *EventRepositoryImpl) ListAttacks(ctx context.Context, limit, offset int) ([]*models.AttackAttempt, error) {
	query := `
		SELECT id, ip_address, category, severity, payload, payload_digest,
		       endpoint, method, triggered_block, created_at
		FROM attack_attempts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query attack attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.AttackAttempt, 0)
	for rows.Next() {
		var a models.AttackAttempt
		err := rows.Scan(
			&a.ID, &a.IPAddress, &a.Category, &a.Severity, &a.Payload, &a.PayloadDigest,
			&a.Endpoint, &a.Method, &a.TriggeredBlock, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attack attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return attempts, nil
}

// ResolveEvent annotates an event; the original fact fields stay untouched.
func (r *EventRepositoryImpl) ResolveEvent(ctx context.Context, id uuid.UUID, investigator string) error {
	query := `
		UPDATE security_events
		SET resolved = TRUE, resolved_by = $2, resolved_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, investigator)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
