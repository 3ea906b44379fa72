package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/database"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenColumns = `id, account_id, secret_digest, display_prefix, name, daily_ceiling,
	usage_today, usage_day, total_usage, status, expires_at,
	last_used_at, last_used_ip, last_used_agent, created_at, updated_at`

// TokenRepositoryImpl implements TokenRepository on pgx.
type TokenRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new token repository.
func NewTokenRepository(db *database.DB) TokenRepository {
	return &TokenRepositoryImpl{pool: db.Pool}
}

func scanTokenRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.APIToken, error) {
	var t models.APIToken
	err := scanner.Scan(
		&t.ID,
		&t.AccountID,
		&t.SecretDigest,
		&t.DisplayPrefix,
		&t.Name,
		&t.DailyCeiling,
		&t.UsageToday,
		&t.UsageDay,
		&t.TotalUsage,
		&t.Status,
		&t.ExpiresAt,
		&t.LastUsedAt,
		&t.LastUsedIP,
		&t.LastUsedAgent,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

// Create stores a new token row.
func (r *TokenRepositoryImpl) Create(ctx context.Context, token *models.APIToken) error {
	query := `
		INSERT INTO api_tokens (id, account_id, secret_digest, display_prefix, name,
			daily_ceiling, usage_day, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.AccountID,
		token.SecretDigest,
		token.DisplayPrefix,
		token.Name,
		token.DailyCeiling,
		token.UsageDay,
		token.Status,
		token.ExpiresAt,
		token.CreatedAt,
		token.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// GetActiveByDigest resolves a digest in a single lookup requiring both the
// token and its owner to be active. All misses return the same ErrNotFound.
func (r *TokenRepositoryImpl) GetActiveByDigest(ctx context.Context, digest string) (*models.APIToken, string, error) {
	query := `
		SELECT t.id, t.account_id, t.secret_digest, t.display_prefix, t.name, t.daily_ceiling,
		       t.usage_today, t.usage_day, t.total_usage, t.status, t.expires_at,
		       t.last_used_at, t.last_used_ip, t.last_used_agent, t.created_at, t.updated_at,
		       a.role
		FROM api_tokens t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.secret_digest = $1 AND t.status = 'active' AND a.status = 'active'
		LIMIT 1
	`

	var t models.APIToken
	var role string
	err := r.pool.QueryRow(ctx, query, digest).Scan(
		&t.ID, &t.AccountID, &t.SecretDigest, &t.DisplayPrefix, &t.Name, &t.DailyCeiling,
		&t.UsageToday, &t.UsageDay, &t.TotalUsage, &t.Status, &t.ExpiresAt,
		&t.LastUsedAt, &t.LastUsedIP, &t.LastUsedAgent, &t.CreatedAt, &t.UpdatedAt,
		&role,
	)
	if err != nil {
		return nil, "", database.MapPostgresError(err)
	}

	// Constant-time re-check as defense-in-depth.
	if !auth.ConstantTimeDigestCompare(t.SecretDigest, digest) {
		return nil, "", models.ErrNotFound
	}

	return &t, role, nil
}

// GetByID retrieves a token regardless of status.
func (r *TokenRepositoryImpl) GetByID(ctx context.Context, id string) (*models.APIToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_tokens WHERE id = $1`, tokenColumns)
	return scanTokenRow(r.pool.QueryRow(ctx, query, id))
}

// ListByAccount retrieves all tokens for an owner, newest first.
func (r *TokenRepositoryImpl) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.APIToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM api_tokens
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tokenColumns)

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*models.APIToken, 0)
	for rows.Next() {
		t, err := scanTokenRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tokens, nil
}

// Revoke transitions an active token to revoked.
func (r *TokenRepositoryImpl) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE api_tokens SET status = 'revoked', updated_at = $1
		WHERE id = $2 AND status = 'active'
	`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkExpired transitions a token to expired.
func (r *TokenRepositoryImpl) MarkExpired(ctx context.Context, id string) error {
	query := `
		UPDATE api_tokens SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status = 'active'
	`

	_, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// ExpireDue bulk-transitions active tokens past their expiry instant.
func (r *TokenRepositoryImpl) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE api_tokens SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
