// Package httpapi wires the HTTP transport (Gin) to the pacing services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, client identity, logging/redaction, panic
// recovery, metrics, compression, CORS, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-send-pacer/internal/config"
	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/http/handlers"
	"github.com/tbourn/go-send-pacer/internal/http/middleware"
	"github.com/tbourn/go-send-pacer/internal/repo"
	"github.com/tbourn/go-send-pacer/internal/services"
)

// planRepoShim adapts the repository free functions to the services.PlanRepo
// interface expected by the PlanService.
type planRepoShim struct{}

// CreatePlan proxies repo.CreatePlan.
func (planRepoShim) CreatePlan(ctx context.Context, db *gorm.DB, p *domain.Plan) error {
	return repo.CreatePlan(ctx, db, p)
}

// GetPlan proxies repo.GetPlan.
func (planRepoShim) GetPlan(ctx context.Context, db *gorm.DB, id, clientID string) (*domain.Plan, error) {
	return repo.GetPlan(ctx, db, id, clientID)
}

// CountPlans proxies repo.CountPlans (pagination support).
func (planRepoShim) CountPlans(ctx context.Context, db *gorm.DB, clientID string) (int64, error) {
	return repo.CountPlans(ctx, db, clientID)
}

// ListPlansPage proxies repo.ListPlansPage (pagination support).
func (planRepoShim) ListPlansPage(ctx context.Context, db *gorm.DB, clientID string, offset, limit int) ([]domain.Plan, error) {
	return repo.ListPlansPage(ctx, db, clientID, offset, limit)
}

// idempotencyRepoShim adapts the idempotency free functions to services.IdempotencyRepo.
type idempotencyRepoShim struct{}

func (idempotencyRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, clientID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, clientID, scope, key, now)
}

func (idempotencyRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, clientID, scope, key, resourceID, status, ttl)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ClientIdentity: resolve X-Client-ID before anything logs or keys on it
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per client/IP, bypass on replay)
//  10. CORS, security headers and response compression
func RegisterRoutes(r *gin.Engine, db *gorm.DB, pacing *services.PacingService, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Caller identity
	r.Use(middleware.ClientIdentity())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		QuietPaths:  []string{"/health", "/metrics"},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting); only plan creation replays.
	plansPath := joinPath(apiBase, "/plans")
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == plansPath {
					return services.IdempotencyScopePlans
				}
				return ""
			},
		},
		func(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, clientID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per client/IP
	// Admission checks and plans fan out to the status source per account.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientOrIP()).
		SetCost(http.MethodPost, joinPath(apiBase, "/campaigns/admission"), 2).
		SetCost(http.MethodPost, plansPath, 2)
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderClientID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{
		"X-Request-ID", "Content-Length", "ETag", "Retry-After",
		handlers.HeaderIdempotencyReplayed, middleware.HeaderRateLimitLimit, middleware.HeaderRateLimitRemaining,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
		NoStorePaths: []string{
			joinPath(apiBase, "/accounts/:id/rate-limit-status"),
			joinPath(apiBase, "/campaigns/admission"),
		},
	}))

	// Plan listings and schedules can be large.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	plans := services.NewPlanService(db, planRepoShim{}, idempotencyRepoShim{}, pacing)
	if cfg.IdempotencyTTL > 0 {
		plans.IdempotencyTTL = cfg.IdempotencyTTL
	}
	h := handlers.New(pacing, plans)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Rates
		api.POST("/rate-limits/calculate", h.CalculateRateLimit)
		api.POST("/rate-limits/adaptive", h.AdaptiveRateLimit)
		api.DELETE("/rate-limits/cache", h.ClearStatusCache)

		// Accounts and channels
		api.GET("/accounts/:id/rate-limit-status", h.GetRateLimitStatus)
		api.GET("/channels/:class/policy", h.GetChannelPolicy)

		// Campaigns
		api.POST("/campaigns/admission", h.CheckAdmission)
		api.POST("/schedules/business-hours", h.BusinessHoursSchedule)

		// Plans
		api.POST("/plans", h.CreatePlan)
		api.GET("/plans", h.ListPlans)
		api.GET("/plans/:id", h.GetPlan)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath mirrors how groupWithPrefix composes route templates.
func joinPath(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	return prefix + p
}
