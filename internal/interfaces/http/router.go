// Package http assembles the gin engine that serves the assessment API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	// Handlers
	AssessmentHandler *handlers.AssessmentHandler
	ReferenceHandler  *handlers.ReferenceHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORS          *middleware.CORSConfig
	Logging       middleware.LoggingConfig
	RateLimiter   resilience.Limiter
	RatePerSecond float64
	MaxBodySize   int64

	// Infrastructure
	Mode           string // gin mode: debug | release | test
	Logger         logging.Logger
	Metrics        middleware.HTTPMetrics
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the gin engine. Global middleware runs in the order
// request id, recovery, metrics, logging, CORS, rate limit, body cap.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	// --- Operational endpoints (not rate limited) ---
	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
		r.GET("/capabilities", h.Capabilities)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	// --- API v1 ---
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RatePerSecond, cfg.Logger))
	api.Use(middleware.MaxBodyBytes(cfg.MaxBodySize))
	registerAssessmentRoutes(api, cfg.AssessmentHandler)
	registerReferenceRoutes(api, cfg.ReferenceHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.Response{
			Success: false,
			Error:   &handlers.ErrorBody{Code: "COMMON_005", Message: "route not found"},
		})
	})
	return r
}

func registerAssessmentRoutes(r *gin.RouterGroup, h *handlers.AssessmentHandler) {
	if h == nil {
		return
	}
	r.POST("/assessments", h.Create)
	r.POST("/assessments/batch", h.Batch)
	r.POST("/assessments/async", h.Async)
	r.GET("/assess", h.Query)
}

func registerReferenceRoutes(r *gin.RouterGroup, h *handlers.ReferenceHandler) {
	if h == nil {
		return
	}
	r.GET("/reference/countries", h.Countries)
	r.GET("/reference/countries/:name", h.Country)
	r.GET("/reference/industries", h.Industries)
	r.GET("/registries/match", h.RegistryMatch)
}
