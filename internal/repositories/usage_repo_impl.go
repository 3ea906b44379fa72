package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hmarchena/gatewarden/internal/database"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/jackc/pgx/v5"
)

// UsageRepositoryImpl implements UsageRepository on pgx.
type UsageRepositoryImpl struct {
	db *database.DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *database.DB) UsageRepository {
	return &UsageRepositoryImpl{db: db}
}

// AdmitAndCharge collapses check-then-increment into one conditional upsert.
// The WHERE clause on the conflict update is what makes concurrent callers
// serialize correctly: the row lock taken by the first writer forces every
// later caller to re-evaluate the condition against the committed count.
func (r *UsageRepositoryImpl) AdmitAndCharge(ctx context.Context, accountID, tokenID string, day time.Time, ceiling int, meta ChargeMeta) (int, bool, error) {
	var used int
	admitted := false

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		chargeQuery := `
			INSERT INTO usage_counters (account_id, day, total)
			VALUES ($1, $2, 1)
			ON CONFLICT (account_id, day) DO UPDATE
			SET total = usage_counters.total + 1
			WHERE usage_counters.total < $3
			RETURNING total
		`

		err := tx.QueryRow(ctx, chargeQuery, accountID, day, ceiling).Scan(&used)
		if errors.Is(err, pgx.ErrNoRows) {
			// Ceiling reached: record the overflow and report current usage.
			overflowQuery := `
				UPDATE usage_counters
				SET quota_overflow = quota_overflow + 1
				WHERE account_id = $1 AND day = $2
				RETURNING total
			`
			if err := tx.QueryRow(ctx, overflowQuery, accountID, day).Scan(&used); err != nil {
				return fmt.Errorf("record quota overflow: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("charge usage counter: %w", err)
		}

		tokenQuery := `
			UPDATE api_tokens
			SET usage_today = CASE WHEN usage_day = $2 THEN usage_today + 1 ELSE 1 END,
			    usage_day = $2,
			    total_usage = total_usage + 1,
			    last_used_at = NOW(),
			    last_used_ip = $3,
			    last_used_agent = $4,
			    updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, tokenQuery, tokenID, day, meta.IPAddress, meta.UserAgent); err != nil {
			return fmt.Errorf("charge token usage: %w", err)
		}

		admitted = true
		return nil
	})
	if err != nil {
		return 0, false, database.MapPostgresError(err)
	}

	return used, admitted, nil
}

// RecordOutcome updates the succeeded/failed split after the downstream call.
func (r *UsageRepositoryImpl) RecordOutcome(ctx context.Context, accountID string, day time.Time, succeeded bool, latency time.Duration) error {
	query := `
		UPDATE usage_counters
		SET succeeded = succeeded + $3,
		    failed = failed + $4,
		    latency_ms = latency_ms + $5
		WHERE account_id = $1 AND day = $2
	`

	okInc, failInc := 0, 1
	if succeeded {
		okInc, failInc = 1, 0
	}

	_, err := r.db.Pool.Exec(ctx, query, accountID, day, okInc, failInc, latency.Milliseconds())
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// GetCounter reads one (account, day) counter.
func (r *UsageRepositoryImpl) GetCounter(ctx context.Context, accountID string, day time.Time) (*models.UsageCounter, error) {
	query := `
		SELECT account_id, day, total, succeeded, failed, latency_ms, quota_overflow
		FROM usage_counters
		WHERE account_id = $1 AND day = $2
	`

	var c models.UsageCounter
	err := r.db.Pool.QueryRow(ctx, query, accountID, day).Scan(
		&c.AccountID, &c.Day, &c.Total, &c.Succeeded, &c.Failed, &c.LatencyMillis, &c.QuotaOverflow,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}
