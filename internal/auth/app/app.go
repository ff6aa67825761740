package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/beaverio/beaver-core/internal/auth/http"
	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/internal/auth/store"
	"github.com/beaverio/beaver-core/internal/auth/store/drivers/postgres"
	"github.com/beaverio/beaver-core/internal/auth/store/drivers/sqlite"
	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/beaverio/beaver-core/pkg/cryptox"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/beaverio/beaver-core/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// jwtLeeway tolerates clock skew between replicas.
	jwtLeeway = 5 * time.Second
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	cache    *cachex.Instrumented
	registry *prometheus.Registry

	accessTokens  *jwtx.HMAC
	refreshTokens *jwtx.HMAC

	// Services
	userService         *service.UserService
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	var err error
	if app.accessTokens, err = jwtx.NewHMAC(cfg.AccessSecret, jwtLeeway); err != nil {
		return nil, fmt.Errorf("access token signer: %w", err)
	}
	if app.refreshTokens, err = jwtx.NewHMAC(cfg.RefreshSecret, jwtLeeway); err != nil {
		return nil, fmt.Errorf("refresh token signer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCache(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"cache", app.cfg.CacheDriver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.closeResources()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeResources(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeResources() error {
	var errs []error
	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.StoreDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initCache connects the configured cache and wraps it with metrics
func (app *Application) initCache(ctx context.Context) error {
	var c cachex.Cache
	switch app.cfg.CacheDriver {
	case "redis":
		r, err := cachex.NewRedis(app.cfg.RedisURL, app.cfg.CacheDefaultTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize cache: %w", err)
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return fmt.Errorf("failed to reach cache: %w", err)
		}
		c = r
	default:
		c = cachex.NewMemory(app.cfg.CacheDefaultTTL)
	}

	app.cache = cachex.Instrument(c, app.registry)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	// User lookups tolerate cache outages; sessions do not.
	app.userService = &service.UserService{
		Store:    app.db,
		Cache:    cachex.NewLenient(app.cache),
		CacheTTL: app.cfg.UserCacheTTL,
	}

	app.authService = &service.AuthService{
		Users:         app.userService,
		Store:         app.db,
		Sessions:      service.NewSessionIndex(app.cache, app.cfg.RefreshTTL),
		AccessTokens:  app.accessTokens,
		RefreshTokens: app.refreshTokens,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
		Metrics:       service.NewMetrics(app.registry),
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.accessTokens,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.UserService = app.userService
	router.Cache = app.cache
	router.Gatherer = app.registry
	router.Cookies = httpx.CookieOptions{Secure: app.cfg.Production()}
	router.AuthRateLimit = httpx.NewRateLimitConfig(app.cfg.RateLimitLimit, app.cfg.RateLimitWindow)
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
