// Package server assembles repositories, services and HTTP routes into one
// runnable application.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"jadwa/internal/config"
	"jadwa/internal/modules/audit"
	"jadwa/internal/modules/auth"
	"jadwa/internal/modules/chat"
	"jadwa/internal/modules/consultation"
	"jadwa/internal/modules/notification"
	"jadwa/internal/modules/payment"
	"jadwa/internal/modules/study"
	"jadwa/internal/pkg/dispatch"
	"jadwa/internal/pkg/id"
	jwtsvc "jadwa/internal/pkg/jwt"
	"jadwa/internal/repository"
)

const (
	dispatchBuffer  = 1024
	dispatchWorkers = 4
	dispatchTimeout = 5 * time.Second
)

// App holds the wired application. Build it with New and release it with
// Close.
type App struct {
	Router *gin.Engine
	Auth   *auth.Service
	Relay  *chat.Relay

	cfg      *config.Config
	db       *gorm.DB
	rdb      *redis.Client
	logger   *slog.Logger
	queues   []*dispatch.Queue
	registry *chat.RedisRegistry
	cleanup  *notification.CleanupService
}

// New wires every module against db. rdb is optional; without it the chat
// relay and rate limiter stay in-process.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, logger *slog.Logger) (*App, error) {
	seq, err := id.NewSequencer(cfg.NodeID)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(db)
	consultations := repository.NewConsultationRepository(db)
	studies := repository.NewStudyRequestRepository(db)
	payments := repository.NewPaymentRepository(db)
	messages := repository.NewMessageRepository(db)
	notifications := repository.NewNotificationRepository(db)
	auditLogs := repository.NewAuditLogRepository(db)

	notifyQueue := dispatch.New("notifications", dispatchBuffer, dispatchWorkers, dispatchTimeout, logger)
	auditQueue := dispatch.New("audit", dispatchBuffer, dispatchWorkers, dispatchTimeout, logger)

	notifier := notification.NewService(notifications, notifyQueue, logger)
	auditor := audit.NewService(auditLogs, auditQueue, logger)

	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(users, tokens)

	gate := payment.NewGate(payments)
	consultationService := consultation.NewService(consultation.Deps{
		Consultations: consultations,
		Users:         users,
		Gate:          gate,
		Payments:      payments,
		Notifier:      notifier,
		Audit:         auditor,
		Currency:      cfg.Currency,
		Logger:        logger,
	})
	studyService := study.NewService(studies, users, notifier, auditor, logger)
	paymentService := payment.NewService(payments, consultations, notifier, auditor, cfg.Currency, logger)

	app := &App{
		Auth:    authService,
		cfg:     cfg,
		db:      db,
		rdb:     rdb,
		logger:  logger,
		queues:  []*dispatch.Queue{notifyQueue, auditQueue},
		cleanup: notification.NewCleanupService(notifications, cfg.NotificationRetention, cfg.NotificationCleanupInterval, logger),
	}

	var registry chat.Registry = chat.NewMemoryRegistry()
	if rdb != nil {
		redisRegistry := chat.NewRedisRegistry(rdb, logger)
		if err := redisRegistry.Start(ctx); err != nil {
			_ = app.closeQueues(context.Background())
			return nil, fmt.Errorf("start chat registry: %w", err)
		}
		app.registry = redisRegistry
		registry = redisRegistry
	}

	app.Relay = chat.NewRelay(chat.Deps{
		Auth:     authService,
		Access:   consultationService,
		Messages: messages,
		Users:    users,
		Registry: registry,
		Seq:      seq,
		Logger:   logger,
		Options: chat.Options{
			BufferSize: cfg.RelayBufferSize,
			SendRate:   rate.Limit(cfg.RelaySendRate),
			SendBurst:  cfg.RelaySendBurst,
		},
	})

	app.Router = newRouter(routerDeps{
		cfg:    cfg,
		db:     db,
		rdb:    rdb,
		logger: logger,
		auth:   authService,
		handlers: handlers{
			auth:          auth.NewHandler(authService),
			consultations: consultation.NewHandler(consultationService),
			studies:       study.NewHandler(studyService),
			payments:      payment.NewHandler(paymentService),
			chat:          chat.NewHandler(app.Relay, chat.NewWSHandler(app.Relay, cfg.CORSAllowedOrigins, logger)),
			notifications: notification.NewHandler(notifier),
			audit:         audit.NewHandler(auditor),
		},
	})

	return app, nil
}

// StartBackground launches periodic jobs bound to ctx.
func (a *App) StartBackground(ctx context.Context) {
	a.cleanup.Start(ctx)
}

// Close stops the chat registry and drains the side-effect queues.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("chat registry: %w", err))
		}
	}
	if err := a.closeQueues(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeQueues(ctx context.Context) error {
	var errs []error
	for _, q := range a.queues {
		if err := q.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
