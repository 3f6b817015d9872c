package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/shopcatalog/internal/service"
	"github.com/utafrali/shopcatalog/pkg/health"
	"github.com/utafrali/shopcatalog/pkg/middleware"
)

// RouterConfig carries the router's collaborators. Zero-valued optional
// fields switch the matching feature off.
type RouterConfig struct {
	Service     *service.CatalogService
	Health      *health.Handler
	Logger      *slog.Logger
	ServiceName string

	// Optional.
	Gatherer          prometheus.Gatherer
	HTTPMetrics       *middleware.HTTPMetrics
	RateLimiter       *middleware.RateLimiter
	TokenValidator    middleware.TokenValidator
	CORS              *middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all catalog service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	// Health check endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.MountPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)
	}

	// Catalog API endpoints
	catalogHandler := NewCatalogHandler(cfg.Service, cfg.Logger)

	r.Route("/api/v1/catalog", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.TokenValidator != nil {
			r.Use(middleware.OptionalAuth(cfg.TokenValidator))
		}
		r.Use(middleware.Session)

		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/facets", catalogHandler.GetFacets)

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", catalogHandler.GetFilters)
			r.Put("/", catalogHandler.ReplaceFilters)
			r.Delete("/", catalogHandler.ResetFilters)

			r.Patch("/search", catalogHandler.UpdateSearch)
			r.Patch("/categories", catalogHandler.UpdateCategories)
			r.Patch("/brands", catalogHandler.UpdateBrands)
			r.Patch("/price", catalogHandler.UpdatePrice)
			r.Patch("/sort", catalogHandler.UpdateSort)
			r.Patch("/page", catalogHandler.UpdatePage)
		})
	})

	return r
}
