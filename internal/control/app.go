// Package control wires storage, caching, health and the HTTP API into one
// application and manages its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/vietddude/dal/internal/api"
	"github.com/vietddude/dal/internal/core/config"
	"github.com/vietddude/dal/internal/health"
	redisclient "github.com/vietddude/dal/internal/infra/redis"
	"github.com/vietddude/dal/internal/infra/storage"
	"github.com/vietddude/dal/internal/infra/storage/cached"
	"github.com/vietddude/dal/internal/infra/storage/memory"
	"github.com/vietddude/dal/internal/infra/storage/postgres"
)

const cachePrefix = "dal:"

// App is the main application struct that manages the service lifecycle.
type App struct {
	cfg         config.AppConfig
	store       storage.Store
	db          *postgres.DB
	redisClient *redisclient.Client
	healthMon   *health.Monitor
	server      *http.Server
	addr        net.Addr
	log         *slog.Logger
}

// NewApp creates a new App with all dependencies initialized. Without a
// database URL the in-memory store is used; without a redis endpoint only
// the in-process cache layer is active.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, log: logger}

	// 1. Initialize Storage
	var base storage.Store
	if cfg.Database.Enabled() {
		db, err := postgres.NewDB(ctx, cfg.Database.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx, logger); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		base = db
		logger.Info("Using SQL storage", "driver", cfg.Database.Driver)
	} else {
		base = memory.NewMemoryStorage()
		logger.Info("Using Memory storage")
	}

	checks := []health.Check{{
		Name:     "database",
		Critical: true,
		Probe:    base.Health,
	}}

	// 2. Initialize Redis. A redis outage never blocks startup: the client
	// dials lazily and the cache falls back to the repository.
	var remote *redisclient.Cache
	if cfg.Redis.Enabled() {
		client, err := redisclient.NewClient(cfg.Redis, logger)
		if err != nil {
			a.closeStorage()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		if _, err := client.Connect(ctx); err != nil {
			logger.Warn("Redis unavailable at startup, continuing", "error", err)
		}
		a.redisClient = client
		remote = redisclient.NewCache(client, cachePrefix)
		checks = append(checks, health.Check{
			Name:       "redis",
			Probe:      client.Ping,
			Generation: client.Manager().Generation,
		})
	}

	// 3. Cache category reads
	categories := cached.NewCategoryRepo(base.Categories(), remote, cfg.Cache, logger)
	a.store = cached.NewStore(base, categories)

	// 4. Health monitor and API
	a.healthMon = health.NewMonitor(checks...)
	handler := api.New(a.store, a.healthMon, logger).Router()
	a.server = &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// Store returns the cached store the API serves from.
func (a *App) Store() storage.Store { return a.store }

// Health returns the current health report.
func (a *App) Health(ctx context.Context) health.HealthReport {
	return a.healthMon.CheckHealth(ctx)
}

// Addr returns the address the HTTP server listens on, once started.
func (a *App) Addr() net.Addr { return a.addr }

// Start binds the listener and serves in the background.
func (a *App) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	a.addr = ln.Addr()

	go func() {
		a.log.Info("HTTP server listening", "addr", a.addr.String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop shuts the server down and releases storage and redis.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping DAL service...")

	err := a.server.Shutdown(ctx)

	if a.redisClient != nil {
		if cerr := a.redisClient.Close(); cerr != nil {
			a.log.Warn("Failed to close Redis", "error", cerr)
		}
	}
	a.closeStorage()
	return err
}

func (a *App) closeStorage() {
	var err error
	if a.db != nil {
		err = a.db.Close()
	} else if a.store != nil {
		err = a.store.Close()
	}
	if err != nil {
		a.log.Warn("Failed to close storage", "error", err)
	}
}
