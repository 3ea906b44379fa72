package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Security SecurityConfig
	Upstream UpstreamConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	RedisURL       string   // optional; empty disables the block cache
	TrustedProxies []string // CIDR ranges allowed to set forwarding headers
}

type SecurityConfig struct {
	SessionSecret   string        // HMAC secret for management-surface JWTs
	AttackThreshold int           // qualifying attacks per window before auto-block
	AttackWindow    time.Duration // trailing window for the threshold
	BlockDuration   time.Duration // temporary block lifetime
	AuditQueueSize  int
	SweepInterval   time.Duration // expired-token sweeper cadence
}

type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(sessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters (got %d)", len(sessionSecret))
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "gatewarden"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			RedisURL:       getEnv("REDIS_URL", ""),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES"),
		},
		Security: SecurityConfig{
			SessionSecret:   sessionSecret,
			AttackThreshold: getEnvAsInt("ATTACK_THRESHOLD", 5),
			AttackWindow:    getEnvAsDuration("ATTACK_WINDOW", 1*time.Hour),
			BlockDuration:   getEnvAsDuration("BLOCK_DURATION", 24*time.Hour),
			AuditQueueSize:  getEnvAsInt("AUDIT_QUEUE_SIZE", 1024),
			SweepInterval:   getEnvAsDuration("SWEEP_INTERVAL", 1*time.Hour),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_URL", "http://localhost:9090"),
			Timeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Security.AttackThreshold < 1 {
		return nil, fmt.Errorf("ATTACK_THRESHOLD must be positive")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
