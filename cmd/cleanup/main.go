// Command cleanup prunes expired notifications once and exits. It is meant
// for cron-style schedulers when the API runs with the in-process cleanup
// disabled.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"jadwa/internal/config"
	"jadwa/internal/core"
	"jadwa/internal/database"
	"jadwa/internal/modules/notification"
	"jadwa/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := core.NewLogger(cfg, os.Stdout)

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cleanup := notification.NewCleanupService(repository.NewNotificationRepository(db), cfg.NotificationRetention, 0, logger)
	deleted, err := cleanup.RunOnce(ctx)
	if err != nil {
		os.Exit(1)
	}
	logger.Info("notification cleanup done", "deleted", deleted, "retention", cfg.NotificationRetention)
}
