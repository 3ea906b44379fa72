package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hmarchena/gatewarden/internal/repositories"
)

// MaintenanceManager periodically sweeps tokens whose expiry timestamp has
// passed, so that lookups never depend on the lazy per-request check alone.
type MaintenanceManager struct {
	tokens   repositories.TokenRepository
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMaintenanceManager creates a manager sweeping at the given interval.
func NewMaintenanceManager(tokens repositories.TokenRepository, logger *slog.Logger, interval time.Duration) *MaintenanceManager {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &MaintenanceManager{
		tokens:   tokens,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately.
func (m *MaintenanceManager) Start() {
	m.wg.Add(1)
	go m.run()
	m.logger.Info("maintenance manager started", slog.String("interval", m.interval.String()))
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (m *MaintenanceManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	m.logger.Info("maintenance manager stopped")
}

func (m *MaintenanceManager) run() {
	defer m.wg.Done()

	m.sweep()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MaintenanceManager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := m.tokens.ExpireDue(ctx, time.Now())
	if err != nil {
		m.logger.Error("token expiry sweep failed", slog.Any("error", err))
		return
	}
	if expired > 0 {
		m.logger.Info("expired tokens swept", slog.Int64("count", expired))
	}
}
