package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// mockTokenRepo is an in-memory TokenRepository keyed by digest and id.
type mockTokenRepo struct {
	mu       sync.Mutex
	byDigest map[string]*models.APIToken
	byID     map[string]*models.APIToken
	roles    map[string]string // accountID -> role
	statuses map[string]string // accountID -> account status

	lookupErr error
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{
		byDigest: make(map[string]*models.APIToken),
		byID:     make(map[string]*models.APIToken),
		roles:    make(map[string]string),
		statuses: make(map[string]string),
	}
}

func (m *mockTokenRepo) add(token *models.APIToken, role, accountStatus string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDigest[token.SecretDigest] = token
	m.byID[token.ID] = token
	m.roles[token.AccountID] = role
	m.statuses[token.AccountID] = accountStatus
}

func (m *mockTokenRepo) Create(ctx context.Context, token *models.APIToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byDigest[token.SecretDigest]; exists {
		return models.ErrConflict
	}
	m.byDigest[token.SecretDigest] = token
	m.byID[token.ID] = token
	return nil
}

func (m *mockTokenRepo) GetActiveByDigest(ctx context.Context, digest string) (*models.APIToken, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, "", m.lookupErr
	}
	token, ok := m.byDigest[digest]
	if !ok || token.Status != models.TokenStatusActive || m.statuses[token.AccountID] != "active" {
		return nil, "", models.ErrNotFound
	}
	copied := *token
	return &copied, m.roles[token.AccountID], nil
}

func (m *mockTokenRepo) GetByID(ctx context.Context, id string) (*models.APIToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (m *mockTokenRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.APIToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIToken
	for _, token := range m.byID {
		if token.AccountID == accountID {
			copied := *token
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockTokenRepo) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byID[id]
	if !ok || token.Status != models.TokenStatusActive {
		return models.ErrNotFound
	}
	token.Status = models.TokenStatusRevoked
	return nil
}

func (m *mockTokenRepo) MarkExpired(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	token.Status = models.TokenStatusExpired
	return nil
}

func (m *mockTokenRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, token := range m.byID {
		if token.Status == models.TokenStatusActive && token.ExpiresAt != nil && token.ExpiresAt.Before(now) {
			token.Status = models.TokenStatusExpired
			n++
		}
	}
	return n, nil
}

// mockUsageRepo implements the atomic charge semantics in memory so service
// tests exercise the same admit/deny contract as the SQL path.
type mockUsageRepo struct {
	mu       sync.Mutex
	counters map[string]*models.UsageCounter

	chargeErr error
}

func newMockUsageRepo() *mockUsageRepo {
	return &mockUsageRepo{counters: make(map[string]*models.UsageCounter)}
}

func usageKey(accountID string, day time.Time) string {
	return accountID + "|" + day.Format("2006-01-02")
}

func (m *mockUsageRepo) AdmitAndCharge(ctx context.Context, accountID, tokenID string, day time.Time, ceiling int, meta repositories.ChargeMeta) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chargeErr != nil {
		return 0, false, m.chargeErr
	}
	key := usageKey(accountID, day)
	counter, ok := m.counters[key]
	if !ok {
		counter = &models.UsageCounter{AccountID: accountID, Day: day}
		m.counters[key] = counter
	}
	if counter.Total >= ceiling {
		counter.QuotaOverflow++
		return counter.Total, false, nil
	}
	counter.Total++
	return counter.Total, true, nil
}

func (m *mockUsageRepo) RecordOutcome(ctx context.Context, accountID string, day time.Time, succeeded bool, latency time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.counters[usageKey(accountID, day)]
	if !ok {
		return models.ErrNotFound
	}
	if succeeded {
		counter.Succeeded++
	} else {
		counter.Failed++
	}
	counter.LatencyMillis += latency.Milliseconds()
	return nil
}

func (m *mockUsageRepo) GetCounter(ctx context.Context, accountID string, day time.Time) (*models.UsageCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.counters[usageKey(accountID, day)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *counter
	return &copied, nil
}

// mockBlockRepo is an in-memory BlockRepository with the registry's upsert
// semantics: one row per address, expiry extends, counters increment.
type mockBlockRepo struct {
	mu     sync.Mutex
	blocks map[string]*models.BlockedAddress

	getErr error
}

func newMockBlockRepo() *mockBlockRepo {
	return &mockBlockRepo{blocks: make(map[string]*models.BlockedAddress)}
}

func (m *mockBlockRepo) Get(ctx context.Context, ipAddress string) (*models.BlockedAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	block, ok := m.blocks[ipAddress]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *block
	return &copied, nil
}

func (m *mockBlockRepo) Upsert(ctx context.Context, block *models.BlockedAddress) (*models.BlockedAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()

	existing, ok := m.blocks[block.IPAddress]
	if !ok {
		created := *block
		created.FailedAttempts = 1
		created.TimesBlocked = 1
		created.FirstIncidentAt = now
		created.LastAttemptAt = now
		m.blocks[block.IPAddress] = &created
		copied := created
		return &copied, nil
	}

	existing.Reason = block.Reason
	existing.FailedAttempts++
	existing.TimesBlocked++
	existing.LastAttemptAt = now
	if block.Kind == models.BlockKindPermanent {
		existing.Kind = models.BlockKindPermanent
		existing.BlockedUntil = nil
	} else if block.BlockedUntil != nil {
		if existing.BlockedUntil == nil && existing.Kind != models.BlockKindPermanent {
			existing.BlockedUntil = block.BlockedUntil
		} else if existing.BlockedUntil != nil && block.BlockedUntil.After(*existing.BlockedUntil) {
			existing.BlockedUntil = block.BlockedUntil
		}
	}
	copied := *existing
	return &copied, nil
}

func (m *mockBlockRepo) TouchAttempt(ctx context.Context, ipAddress string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.blocks[ipAddress]
	if !ok {
		return models.ErrNotFound
	}
	block.FailedAttempts++
	block.LastAttemptAt = at
	return nil
}

func (m *mockBlockRepo) List(ctx context.Context, limit, offset int) ([]*models.BlockedAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.BlockedAddress
	for _, block := range m.blocks {
		copied := *block
		out = append(out, &copied)
	}
	return out, nil
}

// mockEventRepo records audit writes in memory.
type mockEventRepo struct {
	mu      sync.Mutex
	events  []*models.SecurityEvent
	attacks []*models.AttackAttempt

	insertAttackErr error
	insertEventErr  error
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{}
}

func (m *mockEventRepo) InsertEvent(ctx context.Context, event *models.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertEventErr != nil {
		return m.insertEventErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepo) InsertAttack(ctx context.Context, attempt *models.AttackAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertAttackErr != nil {
		return m.insertAttackErr
	}
	m.attacks = append(m.attacks, attempt)
	return nil
}

func (m *mockEventRepo) CountAttacksSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.attacks {
		if a.IPAddress == ipAddress {
			count++
		}
	}
	return count, nil
}

func (m *mockEventRepo) ListEvents(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.SecurityEvent(nil), m.events...), nil
}

func (m *mockEventRepo) ListAttacks(ctx context.Context, limit, offset int) ([]*models.AttackAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AttackAttempt(nil), m.attacks...), nil
}

func (m *mockEventRepo) ResolveEvent(ctx context.Context, id uuid.UUID, investigator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			now := time.Now()
			e.Resolved = true
			e.ResolvedBy = &investigator
			e.ResolvedAt = &now
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *mockEventRepo) eventCategories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Category
	}
	return out
}

func (m *mockEventRepo) attackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attacks)
}

func (m *mockEventRepo) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
