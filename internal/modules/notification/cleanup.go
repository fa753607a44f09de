package notification

import (
	"context"
	"log/slog"
	"time"
)

type Pruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// CleanupService removes notifications past their retention window.
type CleanupService struct {
	repo      Pruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewCleanupService(repo Pruner, retention, interval time.Duration, logger *slog.Logger) *CleanupService {
	return &CleanupService{repo: repo, retention: retention, interval: interval, logger: logger}
}

func (c *CleanupService) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	deleted, err := c.repo.DeleteOlderThan(ctx, c.retention)
	if err != nil {
		c.logger.Error("notification cleanup failed", "error", err)
		return 0, err
	}
	c.logger.Info("notification cleanup completed", "deleted", deleted, "took", time.Since(start))
	return deleted, nil
}

// Start runs RunOnce every interval until ctx ends.
func (c *CleanupService) Start(ctx context.Context) {
	if c.interval <= 0 {
		c.logger.Info("notification cleanup disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = c.RunOnce(ctx)
			case <-ctx.Done():
				c.logger.Info("notification cleanup stopped")
				return
			}
		}
	}()

	c.logger.Info("notification cleanup scheduled", "interval", c.interval, "retention", c.retention)
}
