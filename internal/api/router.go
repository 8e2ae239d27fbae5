package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/dbpool"
	"github.com/approvio/approvio/internal/domain"
	"github.com/approvio/approvio/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log          *logrus.Logger
	Pool         *dbpool.Pool
	Approvals    domain.ApprovalService
	Bulk         domain.BulkApplier
	Audit        domain.AuditReader
	Quarantine   domain.QuarantineReader
	Bus          BusStatus
	TenantLookup middleware.TenantLookup
	CORSOrigins  []string
	Version      string
}

// maxBodySize bounds request bodies. Bulk batches of 500 ids fit well below this.
const maxBodySize = 1 << 20 // 1 MB

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Bus, log, deps.Version)
	items := NewItemHandler(deps.Approvals, log)
	bulk := NewBulkHandler(deps.Bulk, log)
	audit := NewAuditHandler(deps.Audit, log)
	quarantine := NewQuarantineHandler(deps.Quarantine, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require authentication.
	api.Use(middleware.AuthMiddleware(middleware.NewCachedTenantLookup(ctx, deps.TenantLookup), log))

	// Approval items.
	api.GET("/items", items.List)
	api.GET("/items/:id", items.Get)
	api.POST("/items/:id/decision", items.Decide)
	api.GET("/items/:id/audit", items.Trail)

	// Bulk decisions.
	api.POST("/bulk/decision", bulk.Decide)

	// Compliance audit.
	api.GET("/audit", audit.Query)
	api.DELETE("/audit", audit.Purge)

	// Quarantined inbound events.
	api.GET("/quarantine", quarantine.List)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
