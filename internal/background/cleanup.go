package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner removes expired rows and reports how many were deleted
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically runs a set of named cleaners
type CleanupManager struct {
	cleaners map[string]Cleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		cleaners: make(map[string]Cleaner),
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a cleaner under name. Call before Start.
func (cm *CleanupManager) Register(name string, c Cleaner) {
	cm.cleaners[name] = c
}

// Start runs every cleaner immediately and then on each tick until Stop or ctx is done
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	for name, c := range cm.cleaners {
		cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		rowsDeleted, err := c.CleanupExpired(cleanupCtx)
		cancel()

		if err != nil {
			cm.logger.Error("cleanup failed", slog.String("task", name), slog.Any("error", err))
			continue
		}

		if rowsDeleted > 0 {
			cm.logger.Info("cleanup completed", slog.String("task", name), slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
