package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
	pkglogger "github.com/hmarchena/gatewarden/pkg/logger"
)

// RequestMeta carries the request attributes the authenticator needs for its
// audit trail.
type RequestMeta struct {
	IPAddress string
	Endpoint  string
	UserAgent string
}

// AuthenticatorService resolves opaque bearer tokens to their owner.
type AuthenticatorService struct {
	tokens       repositories.TokenRepository
	tokenManager *auth.TokenManager
	audit        *AuditService
	logger       *slog.Logger
}

// NewAuthenticatorService creates a new AuthenticatorService.
func NewAuthenticatorService(
	tokens repositories.TokenRepository,
	tokenManager *auth.TokenManager,
	audit *AuditService,
	logger *slog.Logger,
) *AuthenticatorService {
	return &AuthenticatorService{
		tokens:       tokens,
		tokenManager: tokenManager,
		audit:        audit,
		logger:       logger,
	}
}

// Authenticate resolves a raw bearer token. Failure modes, in order:
// absent credential, unknown/revoked/suspended (one uniform error so callers
// cannot probe which), past expiry (transitions the row as a side effect).
// Successful authentication is deliberately not a security event; it is
// recorded as ordinary usage by the quota path.
func (s *AuthenticatorService) Authenticate(ctx context.Context, rawToken string, meta RequestMeta) (*models.ResolvedToken, error) {
	if rawToken == "" {
		s.emit(meta, models.EventFailedLogin, models.SeverityMedium, "", nil)
		return nil, models.ErrMissingCredential
	}

	digest, err := s.tokenManager.Digest(rawToken)
	if err != nil {
		s.emit(meta, models.EventInvalidToken, models.SeverityHigh, pkglogger.TruncateCredential(rawToken), nil)
		return nil, models.ErrInvalidCredential
	}

	token, role, err := s.tokens.GetActiveByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.emit(meta, models.EventInvalidToken, models.SeverityHigh, pkglogger.TruncateCredential(rawToken), nil)
			return nil, models.ErrInvalidCredential
		}
		s.logger.ErrorContext(ctx, "token lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalFailure
	}

	if token.IsExpired() {
		if err := s.tokens.MarkExpired(ctx, token.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to mark token expired",
				slog.String("token_id", token.ID), slog.Any("error", err))
		}
		s.emit(meta, models.EventExpiredToken, models.SeverityMedium, token.DisplayPrefix, &token.AccountID)
		return nil, models.ErrExpiredCredential
	}

	return &models.ResolvedToken{
		Token:       token,
		AccountID:   token.AccountID,
		AccountRole: role,
	}, nil
}

func (s *AuthenticatorService) emit(meta RequestMeta, category, severity, fragment string, accountID *string) {
	s.audit.Record(&models.SecurityEvent{
		IPAddress: meta.IPAddress,
		AccountID: accountID,
		Category:  category,
		Severity:  severity,
		Endpoint:  meta.Endpoint,
		Fragment:  fragment,
	})
}
