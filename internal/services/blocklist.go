package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hmarchena/gatewarden/internal/cache"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
)

const maxCacheTTL = 5 * time.Minute

// BlocklistConfig tunes the automatic block policy.
type BlocklistConfig struct {
	AttackThreshold int           // qualifying attacks per window before auto-block
	AttackWindow    time.Duration // trailing window for the threshold
	BlockDuration   time.Duration // temporary block lifetime
}

// BlocklistService is the block registry: the read path answering IsBlocked
// and the write path that turns repeated attacks into temporary blocks.
type BlocklistService struct {
	blocks repositories.BlockRepository
	events repositories.EventRepository
	cache  cache.BlockCache // optional
	audit  *AuditService
	config BlocklistConfig
	logger *slog.Logger
}

// NewBlocklistService creates a new BlocklistService. cache may be nil.
func NewBlocklistService(
	blocks repositories.BlockRepository,
	events repositories.EventRepository,
	blockCache cache.BlockCache,
	audit *AuditService,
	config BlocklistConfig,
	logger *slog.Logger,
) *BlocklistService {
	return &BlocklistService{
		blocks: blocks,
		events: events,
		cache:  blockCache,
		audit:  audit,
		config: config,
		logger: logger,
	}
}

// IsBlocked answers whether an address is currently denied. Read-only; the
// cache holds positive answers so the hot path stays an indexed lookup at
// worst. Cache errors fall through to the store.
func (s *BlocklistService) IsBlocked(ctx context.Context, ipAddress string) (*models.BlockStatus, error) {
	if s.cache != nil {
		if status, ok, err := s.cache.GetBlock(ctx, ipAddress); err != nil {
			s.logger.Warn("block cache read failed", slog.Any("error", err))
		} else if ok && stillActive(status, time.Now()) {
			return status, nil
		}
	}

	block, err := s.blocks.Get(ctx, ipAddress)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.BlockStatus{}, nil
		}
		return nil, models.ErrInternalFailure
	}

	now := time.Now()
	if !block.IsActive(now) {
		return &models.BlockStatus{}, nil
	}

	status := &models.BlockStatus{
		Blocked: true,
		Reason:  block.Reason,
		Until:   block.BlockedUntil,
	}
	s.cachePositive(ctx, ipAddress, status, now)

	return status, nil
}

// RegisterAttack records an attack attempt and applies the auto-block policy:
// the Nth qualifying attack from one address inside the trailing window
// creates or extends a temporary block. The attempt row is written
// synchronously so the threshold count is never stale; block creation is an
// idempotent upsert, so concurrent triggers converge on one row.
func (s *BlocklistService) RegisterAttack(ctx context.Context, attempt *models.AttackAttempt) (bool, error) {
	now := time.Now()

	count, err := s.events.CountAttacksSince(ctx, attempt.IPAddress, now.Add(-s.config.AttackWindow))
	if err != nil {
		s.logger.Error("failed to count recent attacks", slog.Any("error", err))
		count = 0
	}

	triggered := count+1 >= s.config.AttackThreshold
	attempt.TriggeredBlock = triggered

	if err := s.events.InsertAttack(ctx, attempt); err != nil {
		// Fall back to the async queue so the fact is not lost outright.
		s.logger.Error("failed to record attack attempt", slog.Any("error", err))
		s.audit.RecordAttack(attempt)
	}

	if !triggered {
		// Keep repeat-offender counters warm on an already-known address.
		if err := s.blocks.TouchAttempt(ctx, attempt.IPAddress, now); err != nil {
			s.logger.Warn("failed to touch block attempt counters", slog.Any("error", err))
		}
		return false, nil
	}

	until := now.Add(s.config.BlockDuration)
	block, err := s.blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    attempt.IPAddress,
		Reason:       "automatic block: repeated attack attempts",
		Kind:         models.BlockKindTemporary,
		BlockedUntil: &until,
		BlockedBy:    models.BlockedByAutomatic,
	})
	if err != nil {
		s.logger.Error("failed to create automatic block", slog.Any("error", err))
		return false, models.ErrInternalFailure
	}

	s.cachePositive(ctx, block.IPAddress, &models.BlockStatus{
		Blocked: true,
		Reason:  block.Reason,
		Until:   block.BlockedUntil,
	}, now)

	s.audit.Record(&models.SecurityEvent{
		IPAddress: attempt.IPAddress,
		Category:  models.EventSuspiciousAddr,
		Severity:  models.SeverityCritical,
		Endpoint:  attempt.Endpoint,
		Fragment:  attempt.Category,
	})

	return true, nil
}

// BlockManually imposes an operator block. Kind may be temporary, escalated,
// or permanent; the upsert keeps kind from ever downgrading.
func (s *BlocklistService) BlockManually(ctx context.Context, ipAddress, reason, kind string, until *time.Time) (*models.BlockedAddress, error) {
	switch kind {
	case models.BlockKindTemporary, models.BlockKindPermanent, models.BlockKindEscalated:
	default:
		return nil, models.ErrBadRequest
	}
	if kind == models.BlockKindPermanent {
		until = nil
	} else if until == nil {
		t := time.Now().Add(s.config.BlockDuration)
		until = &t
	}

	block, err := s.blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    ipAddress,
		Reason:       reason,
		Kind:         kind,
		BlockedUntil: until,
		BlockedBy:    models.BlockedByOperator,
	})
	if err != nil {
		return nil, models.ErrInternalFailure
	}

	s.cachePositive(ctx, block.IPAddress, &models.BlockStatus{
		Blocked: true,
		Reason:  block.Reason,
		Until:   block.BlockedUntil,
	}, time.Now())

	return block, nil
}

// ListBlocks returns block rows for operator review.
func (s *BlocklistService) ListBlocks(ctx context.Context, limit, offset int) ([]*models.BlockedAddress, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.blocks.List(ctx, limit, offset)
}

// cachePositive stores a positive block answer with a TTL capped at both the
// remaining block window and a fixed bound.
func (s *BlocklistService) cachePositive(ctx context.Context, ipAddress string, status *models.BlockStatus, now time.Time) {
	if s.cache == nil {
		return
	}

	ttl := maxCacheTTL
	if status.Until != nil {
		if remaining := status.Until.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}

	if err := s.cache.SetBlock(ctx, ipAddress, status, ttl); err != nil {
		s.logger.Warn("block cache write failed", slog.Any("error", err))
	}
}

// stillActive guards against serving a cached block past its expiry.
func stillActive(status *models.BlockStatus, now time.Time) bool {
	if !status.Blocked {
		return false
	}
	return status.Until == nil || status.Until.After(now)
}
