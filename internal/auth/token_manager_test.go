package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	m := NewTokenManager()

	plain, digest, err := m.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plain, "gw_"))
	assert.Len(t, plain, 67) // "gw_" + 64 hex chars
	assert.Len(t, digest, 64)
	assert.NotContains(t, digest, "gw_")
}

func TestGenerateUniqueness(t *testing.T) {
	m := NewTokenManager()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		plain, _, err := m.Generate()
		require.NoError(t, err)
		assert.False(t, seen[plain], "duplicate token generated")
		seen[plain] = true
	}
}

func TestDigestDeterministic(t *testing.T) {
	m := NewTokenManager()

	plain, digest, err := m.Generate()
	require.NoError(t, err)

	recomputed, err := m.Digest(plain)
	require.NoError(t, err)
	assert.Equal(t, digest, recomputed)
}

func TestDigestRejectsMalformed(t *testing.T) {
	m := NewTokenManager()

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"wrong prefix", "sk_" + strings.Repeat("a", 64)},
		{"too short", "gw_abc"},
		{"too long", "gw_" + strings.Repeat("a", 65)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Digest(tc.token)
			assert.Error(t, err)
		})
	}
}

func TestMutatedSecretDifferentDigest(t *testing.T) {
	m := NewTokenManager()

	plain, digest, err := m.Generate()
	require.NoError(t, err)

	// Flip one character; the mutated token still has a valid shape.
	mutated := []byte(plain)
	last := len(mutated) - 1
	if mutated[last] == 'a' {
		mutated[last] = 'b'
	} else {
		mutated[last] = 'a'
	}

	other, err := m.Digest(string(mutated))
	require.NoError(t, err)
	assert.NotEqual(t, digest, other)
}

func TestDisplayPrefix(t *testing.T) {
	m := NewTokenManager()

	plain, _, err := m.Generate()
	require.NoError(t, err)

	prefix := m.DisplayPrefix(plain)
	assert.Len(t, prefix, 10)
	assert.True(t, strings.HasPrefix(plain, prefix))
}

func TestConstantTimeDigestCompare(t *testing.T) {
	assert.True(t, ConstantTimeDigestCompare("abc", "abc"))
	assert.False(t, ConstantTimeDigestCompare("abc", "abd"))
	assert.False(t, ConstantTimeDigestCompare("abc", "abcd"))
}
