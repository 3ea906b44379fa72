package integration

import (
	"context"
	"testing"
	"time"

	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockUpsertIdempotent(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	_, _, blocks, _ := InitializeRepositories(db.DB)

	firstUntil := time.Now().Add(1 * time.Hour)
	first, err := blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    "203.0.113.7",
		Reason:       "repeated attack attempts",
		Kind:         models.BlockKindTemporary,
		BlockedUntil: &firstUntil,
		BlockedBy:    models.BlockedByAutomatic,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.TimesBlocked)

	// Re-blocking extends the one existing row; no duplicate appears.
	secondUntil := time.Now().Add(24 * time.Hour)
	second, err := blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    "203.0.113.7",
		Reason:       "repeated attack attempts",
		Kind:         models.BlockKindTemporary,
		BlockedUntil: &secondUntil,
		BlockedBy:    models.BlockedByAutomatic,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.TimesBlocked)
	require.NotNil(t, second.BlockedUntil)
	assert.True(t, second.BlockedUntil.After(*first.BlockedUntil))

	all, err := blocks.List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBlockUpsertNeverShortensExpiry(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	_, _, blocks, _ := InitializeRepositories(db.DB)

	longUntil := time.Now().Add(48 * time.Hour)
	_, err := blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    "203.0.113.8",
		Reason:       "manual",
		Kind:         models.BlockKindTemporary,
		BlockedUntil: &longUntil,
		BlockedBy:    models.BlockedByOperator,
	})
	require.NoError(t, err)

	shortUntil := time.Now().Add(1 * time.Hour)
	updated, err := blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    "203.0.113.8",
		Reason:       "automatic",
		Kind:         models.BlockKindTemporary,
		BlockedUntil: &shortUntil,
		BlockedBy:    models.BlockedByAutomatic,
	})
	require.NoError(t, err)

	require.NotNil(t, updated.BlockedUntil)
	assert.WithinDuration(t, longUntil, *updated.BlockedUntil, time.Second)
}

func TestBlockKindNeverDowngrades(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	_, _, blocks, _ := InitializeRepositories(db.DB)

	_, err := blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress: "203.0.113.9",
		Reason:    "severe abuse",
		Kind:      models.BlockKindPermanent,
		BlockedBy: models.BlockedByOperator,
	})
	require.NoError(t, err)

	until := time.Now().Add(time.Hour)
	updated, err := blocks.Upsert(ctx, &models.BlockedAddress{
		IPAddress:    "203.0.113.9",
		Reason:       "automatic",
		Kind:         models.BlockKindTemporary,
		BlockedUntil: &until,
		BlockedBy:    models.BlockedByAutomatic,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BlockKindPermanent, updated.Kind)
	assert.Nil(t, updated.BlockedUntil)
}

func TestAttackCountWindow(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	_, _, _, events := InitializeRepositories(db.DB)

	for i := 0; i < 3; i++ {
		err := events.InsertAttack(ctx, &models.AttackAttempt{
			IPAddress:     "203.0.113.10",
			Category:      models.AttackSQLInjection,
			Severity:      models.SeverityHigh,
			Payload:       "' or 1=1 --",
			PayloadDigest: models.DigestPayload("' or 1=1 --"),
			Endpoint:      "/v1/query",
			Method:        "POST",
		})
		require.NoError(t, err)
	}

	// Push one attack outside the window; it must not count.
	_, err := db.Pool.Exec(ctx,
		`UPDATE attack_attempts SET created_at = NOW() - INTERVAL '2 hours'
		 WHERE id = (SELECT id FROM attack_attempts WHERE ip_address = $1 LIMIT 1)`,
		"203.0.113.10")
	require.NoError(t, err)

	count, err := events.CountAttacksSince(ctx, "203.0.113.10", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestResolveEventAnnotation(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	_, _, _, events := InitializeRepositories(db.DB)

	err := events.InsertEvent(ctx, &models.SecurityEvent{
		IPAddress: "203.0.113.11",
		Category:  models.EventInvalidToken,
		Severity:  models.SeverityHigh,
		Endpoint:  "/v1/query",
	})
	require.NoError(t, err)

	listed, err := events.ListEvents(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].Resolved)

	require.NoError(t, events.ResolveEvent(ctx, listed[0].ID, "operator-1"))

	listed, err = events.ListEvents(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Resolved)
	require.NotNil(t, listed[0].ResolvedBy)
	assert.Equal(t, "operator-1", *listed[0].ResolvedBy)
	// Original fact fields unchanged.
	assert.Equal(t, models.EventInvalidToken, listed[0].Category)
}
