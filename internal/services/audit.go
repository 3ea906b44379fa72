package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
)

// auditEntry is one queued audit write; exactly one of the two fields is set.
type auditEntry struct {
	event   *models.SecurityEvent
	attempt *models.AttackAttempt
}

// AuditService is the durable, append-only sink for security events and
// attack attempts. The request path only enqueues; a background worker owns
// persistence. Losing a record under pressure is preferable to blocking or
// failing a request, so a full queue drops the entry and logs operationally.
type AuditService struct {
	repo    repositories.EventRepository
	logger  *slog.Logger
	queue   chan auditEntry
	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewAuditService creates an AuditService with a bounded queue.
func NewAuditService(repo repositories.EventRepository, logger *slog.Logger, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AuditService{
		repo:   repo,
		logger: logger,
		queue:  make(chan auditEntry, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the background writer.
func (s *AuditService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop closes intake and drains whatever is already queued, bounded by the
// given context.
func (s *AuditService) Stop(ctx context.Context) {
	s.stopped.Do(func() { close(s.done) })

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		s.logger.Warn("audit drain timed out", slog.Int("pending", len(s.queue)))
	}
}

// Record enqueues a security event. Never blocks.
func (s *AuditService) Record(event *models.SecurityEvent) {
	s.enqueue(auditEntry{event: event})
}

// RecordAttack enqueues an attack attempt. Never blocks.
func (s *AuditService) RecordAttack(attempt *models.AttackAttempt) {
	s.enqueue(auditEntry{attempt: attempt})
}

func (s *AuditService) enqueue(entry auditEntry) {
	select {
	case <-s.done:
		s.logger.Warn("audit record after shutdown, dropping")
	case s.queue <- entry:
	default:
		s.logger.Warn("audit queue full, dropping record")
	}
}

func (s *AuditService) run() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.queue:
			s.persist(entry)
		case <-s.done:
			// Drain remaining entries before exiting.
			for {
				select {
				case entry := <-s.queue:
					s.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) persist(entry auditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch {
	case entry.event != nil:
		err = s.repo.InsertEvent(ctx, entry.event)
	case entry.attempt != nil:
		err = s.repo.InsertAttack(ctx, entry.attempt)
	}
	if err != nil {
		// Swallowed: a logging outage must never deny traffic.
		s.logger.Error("failed to persist audit record", slog.Any("error", err))
	}
}
