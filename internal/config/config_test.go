package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "test-session-secret-at-least-32-chars!!")
	t.Setenv("DB_PASSWORD", "test-password")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gatewarden", cfg.Database.Name)
	assert.Equal(t, 5, cfg.Security.AttackThreshold)
	assert.Equal(t, time.Hour, cfg.Security.AttackWindow)
	assert.Equal(t, 24*time.Hour, cfg.Security.BlockDuration)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Empty(t, cfg.Server.RedisURL)
	assert.Nil(t, cfg.Server.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ATTACK_THRESHOLD", "3")
	t.Setenv("BLOCK_DURATION", "1h")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Security.AttackThreshold)
	assert.Equal(t, time.Hour, cfg.Security.BlockDuration)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
}

func TestLoadRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_PASSWORD", "test-password")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsShortSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "too-short")
	t.Setenv("DB_PASSWORD", "test-password")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresDBPassword(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-session-secret-at-least-32-chars!!")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "app",
		Password: "pw", Name: "gatewarden", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=app password=pw dbname=gatewarden sslmode=require",
		cfg.DSN())
}
