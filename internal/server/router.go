package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"jadwa/internal/config"
	"jadwa/internal/database"
	"jadwa/internal/middleware"
	"jadwa/internal/modules/audit"
	"jadwa/internal/modules/auth"
	"jadwa/internal/modules/chat"
	"jadwa/internal/modules/consultation"
	"jadwa/internal/modules/notification"
	"jadwa/internal/modules/payment"
	"jadwa/internal/modules/study"
)

type handlers struct {
	auth          *auth.Handler
	consultations *consultation.Handler
	studies       *study.Handler
	payments      *payment.Handler
	chat          *chat.Handler
	notifications *notification.Handler
	audit         *audit.Handler
}

type routerDeps struct {
	cfg      *config.Config
	db       *gorm.DB
	rdb      *redis.Client
	logger   *slog.Logger
	auth     middleware.Authenticator
	handlers handlers
}

func newRouter(d routerDeps) *gin.Engine {
	if d.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.cfg.OtelEnabled {
		r.Use(otelgin.Middleware(d.cfg.ServiceName))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger(d.logger))
	r.Use(middleware.AccessLog(d.logger))
	r.Use(middleware.CORS(d.cfg.CORSAllowedOrigins, d.cfg.IsProduction()))

	r.GET("/health", healthHandler(d.db, d.rdb))

	limiter := middleware.NewRateLimiter(d.rdb, middleware.RateLimitConfig{
		Limit:    middleware.PerWindow(d.cfg.RateLimitRequests, d.cfg.RateLimitBurst, d.cfg.RateLimitWindow),
		KeyFunc:  middleware.KeyByIP,
		FailOpen: true,
	})
	userLimiter := middleware.NewRateLimiter(d.rdb, middleware.RateLimitConfig{
		Limit:    middleware.PerWindow(d.cfg.RateLimitRequests, d.cfg.RateLimitBurst, d.cfg.RateLimitWindow),
		KeyFunc:  middleware.KeyByUser,
		FailOpen: true,
	})

	h := d.handlers
	v1 := r.Group("/api/v1")
	v1.Use(limiter.Handler())
	{
		h.auth.RegisterPublicRoutes(v1)
		h.chat.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.auth), userLimiter.Handler())
		{
			h.auth.RegisterProtectedRoutes(protected)
			h.consultations.RegisterProtectedRoutes(protected)
			h.studies.RegisterProtectedRoutes(protected)
			h.payments.RegisterProtectedRoutes(protected)
			h.chat.RegisterProtectedRoutes(protected)
			h.notifications.RegisterRoutes(protected)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(d.auth), middleware.AdminOnly())
		{
			h.auth.RegisterAdminRoutes(admin)
			h.consultations.RegisterAdminRoutes(admin)
			h.payments.RegisterAdminRoutes(admin)
			h.audit.RegisterRoutes(admin)
		}
	}

	return r
}

// healthHandler reports 503 when the database, or Redis when configured, is
// unreachable.
func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if err := database.Ping(ctx, db); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}
