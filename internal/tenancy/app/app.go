package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	httpapi "github.com/aussiebroadwan/tenancy/internal/tenancy/http"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/postgres"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store/drivers/sqlite"
	"github.com/aussiebroadwan/tenancy/pkg/jwtx"
	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the tenancy service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	verifier jwtx.Verifier
	limiter  *ratelimit.Limiter
	valkey   valkey.Client          // nil when windows are kept in memory
	memory   *ratelimit.MemoryStore // nil when valkey is configured

	// Cancels the JWKS refresh loop
	cancel context.CancelFunc

	// Services
	inviteService       *service.InviteService
	profileService      *service.ProfileService
	propertyService     *service.PropertyService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tenancy-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initLimiter(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	verifier, err := InitVerifier(ctx, app.cfg, app.logger)
	if err != nil {
		_ = app.closeBackends()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	app.verifier = verifier

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run listens on the configured port and blocks until shutdown is requested.
func (app *Application) Run() error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		_ = app.closeBackends()
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.Serve(ln)
}

// Serve accepts connections on ln and blocks until a shutdown signal
// arrives or the server is shut down by another caller.
func (app *Application) Serve(ln net.Listener) error {
	app.housekeepingService.Start()

	app.logger.Info("tenancy service starting", "addr", ln.Addr().String(), "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.closeBackends()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tenancy service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("tenancy service stopped")
	return nil
}

// closeBackends stops key refresh and releases the limiter and database.
func (app *Application) closeBackends() error {
	if app.cancel != nil {
		app.cancel()
	}
	if app.valkey != nil {
		app.valkey.Close()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the configured driver and applies migrations.
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initLimiter loads rate limit policies and connects the window store.
func (app *Application) initLimiter() error {
	policies := ratelimit.DefaultPolicies().ApplyEnv()
	if app.cfg.RateLimitPolicyFile != "" {
		loaded, err := ratelimit.LoadPolicyFile(app.cfg.RateLimitPolicyFile, policies, app.logger)
		if err != nil {
			return fmt.Errorf("failed to load rate limit policies: %w", err)
		}
		policies = loaded
	}

	var rlStore ratelimit.Store
	if app.cfg.ValkeyAddr != "" {
		client, err := ratelimit.DialValkey(ratelimit.ValkeyConfig{
			Addr:     app.cfg.ValkeyAddr,
			Password: app.cfg.ValkeyPassword,
			DB:       app.cfg.ValkeyDB,
		})
		if err != nil {
			return err
		}
		app.valkey = client
		rlStore = ratelimit.NewValkeyStore(client)
		app.logger.Info("rate limiter using shared store", "addr", app.cfg.ValkeyAddr)
	} else {
		app.memory = ratelimit.NewMemoryStore()
		rlStore = app.memory
		app.logger.Warn("VALKEY_ADDR not set, rate limits are per instance")
	}

	app.limiter = ratelimit.New(rlStore, policies, ratelimit.WithLogger(app.logger))
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.inviteService = &service.InviteService{
		Store: app.db,
		TTL:   app.cfg.InviteTTL,
	}
	app.profileService = &service.ProfileService{Store: app.db}
	app.propertyService = &service.PropertyService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.InviteRetention,
	)
	if app.memory != nil {
		app.housekeepingService.Sweeper = app.memory
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		app.limiter,
		app.cfg.TrustProxyHeaders,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.InviteService = app.inviteService
	router.ProfileService = app.profileService
	router.PropertyService = app.propertyService
	router.LinkBase = app.cfg.InviteLinkBase
	router.RequiredScopes = app.cfg.IdPRequiredScopes
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
