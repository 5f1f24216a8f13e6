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

	"github.com/aussiebroadwan/clipshare/internal/accounts/assets"
	"github.com/aussiebroadwan/clipshare/internal/accounts/events"
	httpapi "github.com/aussiebroadwan/clipshare/internal/accounts/http"
	"github.com/aussiebroadwan/clipshare/internal/accounts/service"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"github.com/aussiebroadwan/clipshare/internal/accounts/throttle"
	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
	"github.com/aussiebroadwan/clipshare/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the accounts service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	tokens   *service.TokenIssuer
	assets   assets.Host
	media    http.Handler
	redis    *redis.Client
	nats     *events.NATSPublisher
	registry *prometheus.Registry

	// Services
	authService         *service.AuthService
	profileService      *service.ProfileService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency connected. Anything
// already opened is closed again if a later step fails.
func New(ctx context.Context, cfg Config) (_ *Application, err error) {
	app := &Application{
		cfg:      cfg,
		logger:   NewLogger(cfg),
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			app.closeDependencies()
		}
	}()

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := cryptox.LoadPepper(app.cfg.PepperFile); err != nil {
		return nil, err
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initTokens(); err != nil {
		return nil, err
	}
	if err := app.initAssets(ctx); err != nil {
		return nil, err
	}

	limiter, err := app.initThrottle(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := app.initEvents()
	if err != nil {
		return nil, err
	}

	app.initServices(limiter, publisher)
	app.initHTTP()

	return app, nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "accounts-service",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// Handler exposes the router, mostly for in-process tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

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
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeDependencies()
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
	app.logger.Info("shutting down accounts service...")

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

	if err := app.closeDependencies(); err != nil {
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

// Close releases dependencies without touching the HTTP server. Use it
// when the Application was never Run.
func (app *Application) Close() error {
	return app.closeDependencies()
}

func (app *Application) closeDependencies() error {
	var errs []error

	if app.nats != nil {
		if err := app.nats.Close(); err != nil {
			app.logger.Error("error draining nats connection", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", app.cfg.StoreDriver, err)
	}
	app.db = db

	if !app.cfg.AutoMigrate {
		return nil
	}
	if err := db.ApplyMigrations(ctx); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

func (app *Application) initTokens() error {
	access, refresh, err := resolveSecrets(app.cfg, app.logger)
	if err != nil {
		return err
	}

	app.tokens, err = service.NewTokenIssuer(service.TokenConfig{
		Issuer:        app.cfg.Issuer,
		AccessSecret:  access,
		AccessTTL:     app.cfg.AccessTokenTTL,
		RefreshSecret: refresh,
		RefreshTTL:    app.cfg.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	return nil
}

func (app *Application) initAssets(ctx context.Context) error {
	switch app.cfg.AssetHost {
	case "s3":
		host, err := assets.NewS3Host(ctx, assets.S3Config{
			Bucket:    app.cfg.S3Bucket,
			Region:    app.cfg.S3Region,
			Endpoint:  app.cfg.S3Endpoint,
			AccessKey: app.cfg.S3AccessKey,
			SecretKey: app.cfg.S3SecretKey,
			PublicURL: app.cfg.AssetPublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize s3 asset host: %w", err)
		}
		app.assets = host
		app.logger.Info("asset host ready", "kind", "s3", "bucket", app.cfg.S3Bucket)

	default:
		host, err := assets.NewLocalHost(app.cfg.AssetDir, app.cfg.publicAssetURL())
		if err != nil {
			return fmt.Errorf("failed to initialize local asset host: %w", err)
		}
		app.assets = host
		app.media = host.Handler()
		app.logger.Info("asset host ready", "kind", "local", "dir", app.cfg.AssetDir)
	}
	return nil
}

// initThrottle connects to Redis when configured. Without Redis, logins are
// only limited per IP by the HTTP rate limiter.
func (app *Application) initThrottle(ctx context.Context) (throttle.Limiter, error) {
	if app.cfg.RedisAddr == "" {
		app.logger.Warn("REDIS_ADDR not set, per-account login throttling disabled")
		return nil, nil
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:         app.cfg.RedisAddr,
		Password:     app.cfg.RedisPassword,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	// The limiter fails open, so an unreachable Redis is only worth a warning
	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis unreachable at startup", "addr", app.cfg.RedisAddr, "error", err)
	}

	return throttle.NewRedisLimiter(app.redis, throttle.Config{
		MaxAttempts: app.cfg.LoginMaxAttempts,
		Lockout:     app.cfg.LoginLockout,
		Prefix:      "clipshare:",
		ThrottleIP:  true,
	}), nil
}

func (app *Application) initEvents() (events.Publisher, error) {
	publishers := events.Multi{events.NewMetricsPublisher(app.registry)}

	if app.cfg.NATSURL != "" {
		nc, err := events.NewNATSPublisher(app.cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		app.nats = nc
		publishers = append(publishers, nc)
		app.logger.Info("publishing account events", "nats", app.cfg.NATSURL)
	}

	return publishers, nil
}

// initServices initializes all business logic services
func (app *Application) initServices(limiter throttle.Limiter, publisher events.Publisher) {
	app.authService = &service.AuthService{
		Store:                      app.db,
		Tokens:                     app.tokens,
		Assets:                     app.assets,
		Events:                     publisher,
		Throttle:                   limiter,
		EndSessionOnPasswordChange: app.cfg.EndSessionOnPasswordChange,
	}

	app.profileService = &service.ProfileService{
		Store:  app.db,
		Assets: app.assets,
		Events: publisher,
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
		app.tokens,
		BuildVersion,
		app.db,
		app.logger,
		app.registry,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.ProfileService = app.profileService
	router.Cookies = httpapi.CookieConfig{Secure: app.cfg.CookieSecure}
	router.MaxUploadBytes = app.cfg.MaxUploadBytes
	router.Limits = app.cfg.RateLimits
	router.Media = app.media // nil unless assets are local
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
