package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/copperline/grantd/internal/oauth/http"
	"github.com/copperline/grantd/internal/oauth/service"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/internal/oauth/store/drivers/sqlite"
	"github.com/copperline/grantd/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the grant service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	grantService     *service.GrantService
	tokenService     *service.TokenService
	clientService    *service.ClientService
	authorizeService *service.AuthorizeService
	housekeeper      *service.Housekeeper

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized. The
// authenticator may be nil when no resource owner directory is attached; the
// password grant and credential logins are then unavailable.
func New(cfg Config, authn service.UserAuthenticator) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "grantd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(authn); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeper.Start(context.Background())

	app.logger.Info("grant service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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
	app.logger.Info("shutting down grant service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeper.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("grant service stopped")
	return nil
}

// initDatabase opens the store and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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

// initServices initializes all business logic services. The grant catalog is
// loaded once here; a malformed grant_types table fails startup rather than
// serving requests.
func (app *Application) initServices(authn service.UserAuthenticator) error {
	catalog, err := service.LoadGrantCatalog(context.Background(), app.db)
	if err != nil {
		return fmt.Errorf("failed to load grant catalog: %w", err)
	}

	app.clientService = &service.ClientService{Store: app.db}

	app.grantService = &service.GrantService{
		Store:               app.db,
		Clients:             app.clientService,
		Catalog:             catalog,
		Authenticator:       authn,
		AccessTTL:           app.cfg.AccessTokenTTL,
		RefreshTTL:          app.cfg.RefreshTokenTTL,
		EnablePasswordGrant: app.cfg.EnablePasswordGrant,
		EnableImplicitGrant: app.cfg.EnableImplicitGrant,
	}

	app.tokenService = &service.TokenService{Store: app.db}

	app.authorizeService = &service.AuthorizeService{
		Store:         app.db,
		Clients:       app.clientService,
		Authenticator: authn,
		CodeTTL:       app.cfg.AuthCodeTTL,
	}

	app.housekeeper = &service.Housekeeper{
		Store:    app.db,
		Interval: app.cfg.HousekeepingInterval,
	}

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.GrantService = app.grantService
	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
