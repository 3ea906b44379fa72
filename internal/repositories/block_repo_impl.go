package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/hmarchena/gatewarden/internal/database"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const blockColumns = `ip_address, reason, kind, blocked_until, failed_attempts,
	first_incident_at, last_attempt_at, blocked_by, times_blocked,
	appeal_requested, appeal_note`

// BlockRepositoryImpl implements BlockRepository on pgx.
type BlockRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewBlockRepository creates a new block repository.
func NewBlockRepository(db *database.DB) BlockRepository {
	return &BlockRepositoryImpl{pool: db.Pool}
}

func scanBlockRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.BlockedAddress, error) {
	var b models.BlockedAddress
	err := scanner.Scan(
		&b.IPAddress,
		&b.Reason,
		&b.Kind,
		&b.BlockedUntil,
		&b.FailedAttempts,
		&b.FirstIncidentAt,
		&b.LastAttemptAt,
		&b.BlockedBy,
		&b.TimesBlocked,
		&b.AppealRequested,
		&b.AppealNote,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &b, nil
}

// Get retrieves the row for an address regardless of block liveness.
func (r *BlockRepositoryImpl) Get(ctx context.Context, ipAddress string) (*models.BlockedAddress, error) {
	query := fmt.Sprintf(`SELECT %s FROM blocked_addresses WHERE ip_address = $1`, blockColumns)
	return scanBlockRow(r.pool.QueryRow(ctx, query, ipAddress))
}

// Upsert creates or extends a block, keyed by address. Kind never downgrades
// (permanent > escalated > temporary) and expiry only ever extends.
func (r *BlockRepositoryImpl) Upsert(ctx context.Context, block *models.BlockedAddress) (*models.BlockedAddress, error) {
	query := fmt.Sprintf(`
		INSERT INTO blocked_addresses (ip_address, reason, kind, blocked_until,
			failed_attempts, first_incident_at, last_attempt_at, blocked_by, times_blocked)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW(), $5, 1)
		ON CONFLICT (ip_address) DO UPDATE SET
			reason = EXCLUDED.reason,
			kind = CASE
				WHEN blocked_addresses.kind = 'permanent' OR EXCLUDED.kind = 'permanent' THEN 'permanent'
				WHEN blocked_addresses.kind = 'escalated' OR EXCLUDED.kind = 'escalated' THEN 'escalated'
				ELSE 'temporary'
			END,
			blocked_until = CASE
				WHEN blocked_addresses.kind = 'permanent' OR EXCLUDED.kind = 'permanent' THEN NULL
				ELSE GREATEST(COALESCE(blocked_addresses.blocked_until, EXCLUDED.blocked_until), EXCLUDED.blocked_until)
			END,
			failed_attempts = blocked_addresses.failed_attempts + 1,
			last_attempt_at = NOW(),
			blocked_by = CASE
				WHEN EXCLUDED.blocked_by = 'manual_operator' THEN 'manual_operator'
				ELSE blocked_addresses.blocked_by
			END,
			times_blocked = blocked_addresses.times_blocked + 1
		RETURNING %s
	`, blockColumns)

	row, err := scanBlockRow(r.pool.QueryRow(ctx, query,
		block.IPAddress,
		block.Reason,
		block.Kind,
		block.BlockedUntil,
		block.BlockedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert block: %w", err)
	}
	return row, nil
}

// TouchAttempt bumps the attempt counters without extending the block.
func (r *BlockRepositoryImpl) TouchAttempt(ctx context.Context, ipAddress string, at time.Time) error {
	query := `
		UPDATE blocked_addresses
		SET failed_attempts = failed_attempts + 1, last_attempt_at = $2
		WHERE ip_address = $1
	`

	_, err := r.pool.Exec(ctx, query, ipAddress, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// List returns block rows, most recently attacked first.
func (r *BlockRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.BlockedAddress, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM blocked_addresses
		ORDER BY last_attempt_at DESC
		LIMIT $1 OFFSET $2
	`, blockColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	blocks := make([]*models.BlockedAddress, 0)
	for rows.Next() {
		b, err := scanBlockRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return blocks, nil
}
