package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
)

// IssuerService handles token issuance and lifecycle for authenticated owners.
type IssuerService struct {
	tokens       repositories.TokenRepository
	tokenManager *auth.TokenManager
	logger       *slog.Logger
}

// NewIssuerService creates a new IssuerService.
func NewIssuerService(tokens repositories.TokenRepository, tokenManager *auth.TokenManager, logger *slog.Logger) *IssuerService {
	return &IssuerService{tokens: tokens, tokenManager: tokenManager, logger: logger}
}

// Issue creates a new token for an owner. The plaintext secret appears in the
// returned IssuedToken exactly once and is never persisted. A zero ceiling
// takes the default; out-of-bounds ceilings are rejected.
func (s *IssuerService) Issue(ctx context.Context, accountID, name string, ceiling int, expiresAt *time.Time) (*models.IssuedToken, error) {
	if accountID == "" || name == "" {
		return nil, models.ErrBadRequest
	}
	if ceiling == 0 {
		ceiling = models.DefaultDailyCeiling
	}
	if ceiling < models.MinDailyCeiling || ceiling > models.MaxDailyCeiling {
		return nil, models.ErrBadRequest
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, models.ErrBadRequest
	}

	plain, digest, err := s.tokenManager.Generate()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate token", slog.Any("error", err))
		return nil, models.ErrInternalFailure
	}

	now := time.Now()
	token := &models.APIToken{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		SecretDigest:  digest,
		DisplayPrefix: s.tokenManager.DisplayPrefix(plain),
		Name:          name,
		DailyCeiling:  ceiling,
		UsageDay:      models.AccountingDay(now),
		Status:        models.TokenStatusActive,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to store token", slog.Any("error", err))
		return nil, models.ErrInternalFailure
	}

	s.logger.InfoContext(ctx, "token issued",
		slog.String("token_id", token.ID),
		slog.String("account_id", accountID),
		slog.String("prefix", token.DisplayPrefix),
	)

	return &models.IssuedToken{PlainSecret: plain, Token: token}, nil
}

// List returns an owner's tokens, newest first.
func (s *IssuerService) List(ctx context.Context, accountID string, limit, offset int) ([]*models.APIToken, error) {
	if accountID == "" {
		return nil, models.ErrBadRequest
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tokens.ListByAccount(ctx, accountID, limit, offset)
}

// Revoke transitions an owner's token active→revoked. Only the owning account
// may revoke; the row stays forever.
func (s *IssuerService) Revoke(ctx context.Context, accountID, tokenID string) error {
	if accountID == "" || tokenID == "" {
		return models.ErrBadRequest
	}

	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "failed to load token", slog.Any("error", err))
		return models.ErrInternalFailure
	}
	if token.AccountID != accountID {
		return models.ErrForbidden
	}
	if token.Status != models.TokenStatusActive {
		return models.ErrBadRequest
	}

	if err := s.tokens.Revoke(ctx, tokenID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke token", slog.Any("error", err))
		return models.ErrInternalFailure
	}

	s.logger.InfoContext(ctx, "token revoked",
		slog.String("token_id", tokenID), slog.String("account_id", accountID))
	return nil
}
