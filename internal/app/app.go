// Package app wires the catalog service together and runs it.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/shopcatalog/internal/client/product"
	"github.com/utafrali/shopcatalog/internal/config"
	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/internal/event"
	handler "github.com/utafrali/shopcatalog/internal/handler/http"
	"github.com/utafrali/shopcatalog/internal/metrics"
	"github.com/utafrali/shopcatalog/internal/repository"
	"github.com/utafrali/shopcatalog/internal/repository/memory"
	"github.com/utafrali/shopcatalog/internal/repository/postgres"
	redisrepo "github.com/utafrali/shopcatalog/internal/repository/redis"
	"github.com/utafrali/shopcatalog/internal/seed"
	"github.com/utafrali/shopcatalog/internal/service"
	"github.com/utafrali/shopcatalog/internal/state"
	"github.com/utafrali/shopcatalog/pkg/database"
	"github.com/utafrali/shopcatalog/pkg/health"
	"github.com/utafrali/shopcatalog/pkg/httpclient"
	pkgkafka "github.com/utafrali/shopcatalog/pkg/kafka"
	"github.com/utafrali/shopcatalog/pkg/middleware"
	"github.com/utafrali/shopcatalog/pkg/tracing"
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool          *pgxpool.Pool
	redis         *goredis.Client
	kafka         *pkgkafka.Producer
	events        *event.Producer
	registry      *state.Registry
	localState    *memory.FilterStateRepository
	service       *service.CatalogService
	limiter       *middleware.RateLimiter
	httpServer    *http.Server
	traceShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Whatever was opened before a failure is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// Tracing.
	a.traceShutdown, err = tracing.Init(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	catalogMetrics := metrics.NewCatalog(reg)

	healthHandler := health.NewHandler(cfg.HealthCheckTimeout)

	// Catalog snapshot source.
	source, err := a.catalogSource(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}

	// Filter-state persistence.
	stateRepo, err := a.filterStateRepository(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	opts := []state.Option{
		state.WithPageSize(cfg.DefaultPageSize),
		state.WithRecorder(catalogMetrics),
	}
	if cfg.FilterStateMaxAge > 0 {
		opts = append(opts, state.WithMaxAge(cfg.FilterStateMaxAge))
	}
	a.registry = state.NewRegistry(stateRepo, logger, opts...)

	// Filter change events.
	if cfg.KafkaEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		a.kafka = pkgkafka.NewProducer(kafkaCfg, logger, pkgkafka.NewProducerMetrics(reg))
		a.events = event.NewProducer(a.kafka, logger, event.DefaultQueueSize)
		a.registry.Subscribe(a.events.FilterChanged)
		healthHandler.Register("kafka", a.kafka.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.service = service.NewCatalogService(source, a.registry, catalogMetrics, logger)

	// HTTP router.
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitIdleExpiry, logger)
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	routerCfg := handler.RouterConfig{
		Service:           a.service,
		Health:            healthHandler,
		Logger:            logger,
		ServiceName:       config.ServiceName,
		Gatherer:          reg,
		HTTPMetrics:       middleware.NewHTTPMetrics(reg, config.ServiceName),
		RateLimiter:       a.limiter,
		CORS:              &cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}
	if cfg.JWTSecret != "" {
		routerCfg.TokenValidator = middleware.HMACValidator([]byte(cfg.JWTSecret))
	}

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return a, nil
}

func (a *App) catalogSource(ctx context.Context, reg prometheus.Registerer, h *health.Handler) (repository.CatalogSource, error) {
	cfg := a.cfg

	switch cfg.CatalogSource {
	case config.SourcePostgres:
		database.SetSlowQueryThreshold(cfg.SlowQueryThreshold(), a.logger)
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		reg.MustRegister(database.NewPoolStatsCollector(pool, config.ServiceName))
		h.Register("postgres", pool.Ping)
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		return postgres.NewCatalogSource(pool), nil

	case config.SourceHTTP:
		cb := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("product-service"),
			a.logger,
			httpclient.NewBreakerMetrics(reg),
		)
		h.Register("product-service", func(context.Context) error {
			if cb.State() == gobreaker.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		})
		a.logger.Info("using product service catalog", slog.String("url", cfg.ProductServiceURL))
		return product.NewClient(cb, cfg.ProductServiceURL, cfg.ProductPageSize, a.logger), nil

	default:
		items, err := loadSeed(cfg.CatalogSeedFile, cfg.CatalogSeedCount)
		if err != nil {
			return nil, err
		}
		a.logger.Info("using in-memory catalog", slog.Int("items", len(items)))
		return memory.NewCatalogSource(items), nil
	}
}

func (a *App) filterStateRepository(ctx context.Context, h *health.Handler) (repository.FilterStateRepository, error) {
	cfg := a.cfg
	if cfg.StateStore != config.StateRedis {
		a.localState = memory.NewFilterStateRepository(memory.WithTTL(cfg.FilterStateTTL))
		return a.localState, nil
	}

	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	repo := redisrepo.NewFilterStateRepository(client, cfg.FilterStateTTL)
	h.Register("redis", repo.Ping)
	a.logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	return repo, nil
}

// loadSeed reads a JSON array of catalog items from path. Without a path it
// generates count demo items, or an empty catalog when count is zero.
func loadSeed(path string, count int) ([]domain.CatalogItem, error) {
	if path == "" {
		return seed.Generate(seed.Options{Count: count, Seed: 1}), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var items []domain.CatalogItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode catalog seed %s: %w", path, err)
	}
	return items, nil
}

// Handler returns the HTTP handler, for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and background workers and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	a.startBackground(bgCtx, &wg)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	a.shutdownHTTP()
	stopBackground()
	wg.Wait()
	a.close()

	a.logger.Info("application shutdown complete")
	return runErr
}

func (a *App) startBackground(ctx context.Context, wg *sync.WaitGroup) {
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(a.limiter.Run)
	run(func(ctx context.Context) {
		a.registry.RunSweeper(ctx, a.cfg.SessionSweepEvery, a.cfg.SessionIdleTimeout)
	})
	if a.localState != nil {
		run(func(ctx context.Context) {
			ticker := time.NewTicker(a.cfg.SessionSweepEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := a.localState.Cleanup(); n > 0 {
						a.logger.Debug("expired in-memory filter state", slog.Int("removed", n))
					}
				}
			}
		})
	}
	run(func(ctx context.Context) {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.service.Sessions()
			}
		}
	})
	if a.events != nil {
		run(a.events.Run)
	}
}

func (a *App) shutdownHTTP() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
}

// close releases connections in reverse order of creation. Safe on a
// partially built App.
func (a *App) close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
