package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuerFixture(t *testing.T) (*IssuerService, *mockTokenRepo) {
	t.Helper()
	tokens := newMockTokenRepo()
	svc := NewIssuerService(tokens, auth.NewTokenManager(), testLogger())
	return svc, tokens
}

func TestIssueDefaults(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	issued, err := svc.Issue(context.Background(), "acct-1", "ci token", 0, nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.PlainSecret, "gw_"))
	assert.Equal(t, models.DefaultDailyCeiling, issued.Token.DailyCeiling)
	assert.Equal(t, models.TokenStatusActive, issued.Token.Status)
	assert.True(t, strings.HasPrefix(issued.PlainSecret, issued.Token.DisplayPrefix))
	// The stored row never carries the plaintext.
	assert.NotEqual(t, issued.PlainSecret, issued.Token.SecretDigest)
}

func TestIssueCeilingBounds(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	_, err := svc.Issue(context.Background(), "acct-1", "t", models.MaxDailyCeiling+1, nil)
	assert.True(t, errors.Is(err, models.ErrBadRequest))

	_, err = svc.Issue(context.Background(), "acct-1", "t", -1, nil)
	assert.True(t, errors.Is(err, models.ErrBadRequest))

	issued, err := svc.Issue(context.Background(), "acct-1", "t", models.MaxDailyCeiling, nil)
	require.NoError(t, err)
	assert.Equal(t, models.MaxDailyCeiling, issued.Token.DailyCeiling)
}

func TestIssueRejectsPastExpiry(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	past := time.Now().Add(-time.Hour)
	_, err := svc.Issue(context.Background(), "acct-1", "t", 0, &past)
	assert.True(t, errors.Is(err, models.ErrBadRequest))
}

func TestIssueRejectsEmptyName(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	_, err := svc.Issue(context.Background(), "acct-1", "", 0, nil)
	assert.True(t, errors.Is(err, models.ErrBadRequest))
}

func TestRevokeOwnToken(t *testing.T) {
	svc, tokens := newIssuerFixture(t)

	issued, err := svc.Issue(context.Background(), "acct-1", "t", 0, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), "acct-1", issued.Token.ID))

	stored, err := tokens.GetByID(context.Background(), issued.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusRevoked, stored.Status)
}

func TestRevokeForeignTokenForbidden(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	issued, err := svc.Issue(context.Background(), "acct-1", "t", 0, nil)
	require.NoError(t, err)

	err = svc.Revoke(context.Background(), "acct-2", issued.Token.ID)
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func TestRevokeUnknownToken(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	err := svc.Revoke(context.Background(), "acct-1", "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRevokeAlreadyRevoked(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	issued, err := svc.Issue(context.Background(), "acct-1", "t", 0, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), "acct-1", issued.Token.ID))

	err = svc.Revoke(context.Background(), "acct-1", issued.Token.ID)
	assert.True(t, errors.Is(err, models.ErrBadRequest))
}

func TestListClampsPagination(t *testing.T) {
	svc, _ := newIssuerFixture(t)

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(context.Background(), "acct-1", "t", 0, nil)
		require.NoError(t, err)
	}

	tokens, err := svc.List(context.Background(), "acct-1", -5, -5)
	require.NoError(t, err)
	assert.Len(t, tokens, 3)
}
