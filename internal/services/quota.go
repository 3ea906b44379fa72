package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
)

// QuotaError carries the ceiling and current usage alongside ErrQuotaExceeded
// so clients can implement backoff.
type QuotaError struct {
	State models.QuotaState
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %d of %d", e.State.Used, e.State.Ceiling)
}

func (e *QuotaError) Unwrap() error { return models.ErrQuotaExceeded }

// QuotaService enforces and charges the per-owner daily budget. The
// check-then-increment is a single conditional statement inside the
// repository, so concurrent callers can never overshoot the ceiling.
type QuotaService struct {
	usage  repositories.UsageRepository
	audit  *AuditService
	logger *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(usage repositories.UsageRepository, audit *AuditService, logger *slog.Logger) *QuotaService {
	return &QuotaService{usage: usage, audit: audit, logger: logger}
}

// AdmitAndCharge admits a resolved token's request against its daily ceiling,
// charging atomically on admission. Today's counter is created lazily at the
// first request of the UTC accounting day.
func (s *QuotaService) AdmitAndCharge(ctx context.Context, resolved *models.ResolvedToken, meta RequestMeta) (*models.Admission, error) {
	token := resolved.Token
	day := models.AccountingDay(time.Now())

	used, admitted, err := s.usage.AdmitAndCharge(ctx, resolved.AccountID, token.ID, day, token.DailyCeiling, repositories.ChargeMeta{
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "quota charge failed",
			slog.String("account_id", resolved.AccountID), slog.Any("error", err))
		return nil, models.ErrInternalFailure
	}

	if !admitted {
		s.audit.Record(&models.SecurityEvent{
			IPAddress: meta.IPAddress,
			AccountID: &resolved.AccountID,
			TokenID:   &token.ID,
			Category:  models.EventQuotaExceeded,
			Severity:  models.SeverityMedium,
			Endpoint:  meta.Endpoint,
		})
		return nil, &QuotaError{State: models.QuotaState{Ceiling: token.DailyCeiling, Used: used}}
	}

	return &models.Admission{Ceiling: token.DailyCeiling, Used: used}, nil
}

// RecordOutcome notes how the admitted request finished. Best-effort; a
// failure here never affects the request.
func (s *QuotaService) RecordOutcome(ctx context.Context, accountID string, succeeded bool, latency time.Duration) {
	day := models.AccountingDay(time.Now())
	if err := s.usage.RecordOutcome(ctx, accountID, day, succeeded, latency); err != nil {
		s.logger.WarnContext(ctx, "failed to record request outcome",
			slog.String("account_id", accountID), slog.Any("error", err))
	}
}
