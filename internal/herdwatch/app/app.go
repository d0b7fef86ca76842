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

	httpapi "github.com/herdwatch/herdwatch/internal/herdwatch/http"
	"github.com/herdwatch/herdwatch/internal/herdwatch/metrics"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	redisstore "github.com/herdwatch/herdwatch/internal/herdwatch/store/drivers/redis"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store/drivers/sqlite"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
	"github.com/herdwatch/herdwatch/pkg/jwtx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the HerdWatch service and everything it owns.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	sessions store.Sessions
	redis    *redisstore.SessionStore // nil on the sqlite backend
	hasher   *cryptox.PasswordHasher
	access   *jwtx.Codec
	refresh  *jwtx.Codec
	metrics  *metrics.Metrics

	authService         *service.AuthService
	accountService      *service.AccountService
	gate                *service.RequestGate
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds the application. Nothing listens until Run.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "herdwatch",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initCrypto(); err != nil {
		app.closeStores()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrapAdmin(context.Background()); err != nil {
		app.closeStores()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("herdwatch starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"session_backend", app.cfg.SessionBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeStores()
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

// Shutdown drains in-flight requests, stops background work and closes the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down herdwatch...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("herdwatch stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase opens the account database and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore("file:" + app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSessions picks the refresh-session backend.
func (app *Application) initSessions() error {
	if app.cfg.SessionBackend != SessionBackendRedis {
		app.sessions = app.db.Sessions()
		return nil
	}

	rs, err := redisstore.Open(redisstore.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect session store: %w", err)
	}
	app.redis = rs
	app.sessions = rs

	app.logger.Info("redis session store connected", "addr", app.cfg.RedisAddr)
	return nil
}

func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewPasswordHasher(pepper)

	app.access, err = jwtx.NewCodec(jwtx.CodecConfig{
		Secret: []byte(app.cfg.AccessSecret),
		Issuer: app.cfg.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to build access codec: %w", err)
	}

	app.refresh, err = jwtx.NewCodec(jwtx.CodecConfig{
		Secret: []byte(app.cfg.RefreshSecret),
		Issuer: app.cfg.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to build refresh codec: %w", err)
	}
	return nil
}

func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:            app.db,
		Sessions:         app.sessions,
		Hasher:           app.hasher,
		AccessCodec:      app.access,
		RefreshCodec:     app.refresh,
		Metrics:          app.metrics,
		AccessTTL:        app.cfg.AccessTTL,
		RefreshTTL:       jwtx.RefreshTokenTTL,
		StoreTimeout:     app.cfg.StoreTimeout,
		AllowAdminSignup: app.cfg.AllowAdminSignup,
	}

	app.accountService = &service.AccountService{
		Store:        app.db,
		Hasher:       app.hasher,
		StoreTimeout: app.cfg.StoreTimeout,
	}

	app.gate = &service.RequestGate{
		Access:       app.access,
		Store:        app.db,
		Metrics:      app.metrics,
		StoreTimeout: app.cfg.StoreTimeout,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// bootstrapAdmin creates the configured admin once. Both settings must be
// present; a half-configured admin is a startup error.
func (app *Application) bootstrapAdmin(ctx context.Context) error {
	email, password := app.cfg.BootstrapAdminEmail, app.cfg.BootstrapAdminPassword
	if email == "" && password == "" {
		return nil
	}

	created, err := app.accountService.BootstrapAdmin(slogx.WithContext(ctx, app.logger), email, password)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	if !created {
		app.logger.Info("bootstrap admin already exists")
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.logger)

	router.Store = app.db
	if app.redis != nil {
		router.SessionsPinger = app.redis
	}
	router.Gate = app.gate
	router.AuthService = app.authService
	router.AccountService = app.accountService
	router.Metrics = app.metrics
	router.AccessTTL = app.cfg.AccessTTL
	router.Cookie = httpapi.CookieConfig{
		Secure: app.cfg.Production(),
		MaxAge: jwtx.RefreshTokenTTL,
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
