package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/database"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
)

// TestDB manages the PostgreSQL testcontainer used by integration tests.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts a PostgreSQL container and applies all migrations.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("gatewarden"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// Teardown stops the container and closes the connection pool.
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation.
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"attack_attempts",
		"security_events",
		"blocked_addresses",
		"usage_counters",
		"api_tokens",
		"accounts",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// InitializeRepositories creates all repository instances.
func InitializeRepositories(db *database.DB) (
	repositories.TokenRepository,
	repositories.UsageRepository,
	repositories.BlockRepository,
	repositories.EventRepository,
) {
	return repositories.NewTokenRepository(db),
		repositories.NewUsageRepository(db),
		repositories.NewBlockRepository(db),
		repositories.NewEventRepository(db)
}

// SeedAccount inserts a test account and returns its id.
func SeedAccount(ctx context.Context, pool *pgxpool.Pool, email, role string) (string, error) {
	query := `
		INSERT INTO accounts (email, role, status)
		VALUES ($1, $2, 'active')
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, email, role).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert account: %w", err)
	}
	return id, nil
}

// SeedToken issues a token row for an account and returns the plaintext secret
// plus the stored row.
func SeedToken(ctx context.Context, tokens repositories.TokenRepository, accountID string, ceiling int) (string, *models.APIToken, error) {
	manager := auth.NewTokenManager()
	plain, digest, err := manager.Generate()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	token := &models.APIToken{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		SecretDigest:  digest,
		DisplayPrefix: manager.DisplayPrefix(plain),
		Name:          "integration test token",
		DailyCeiling:  ceiling,
		UsageDay:      models.AccountingDay(now),
		Status:        models.TokenStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tokens.Create(ctx, token); err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}
	return plain, token, nil
}
