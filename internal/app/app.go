package app

import (
	"fmt"

	"github.com/pawpal/composite-service/internal/composite"
	"github.com/pawpal/composite-service/internal/executor"
	httpserver "github.com/pawpal/composite-service/internal/http"
	httpH "github.com/pawpal/composite-service/internal/http/handlers"
	httpMW "github.com/pawpal/composite-service/internal/http/middleware"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

type App struct {
	Log    *logger.Logger
	Cfg    Config
	Server *httpserver.Server
}

func New() (*App, error) {
	// The log mode itself is a config value, so config resolves first
	// against a bootstrap logger and the real one is built from the result.
	bootLog, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg := LoadConfig(bootLog)
	bootLog.Sync()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// Long-lived clients, shared across requests: read-only configuration
	// plus a connection pool.
	principals, err := upstream.New(log, upstream.Config{
		Name:     "principal",
		BaseURL:  cfg.Principal.BaseURL,
		Resource: cfg.Principal.Resource,
		Timeout:  cfg.Principal.Timeout(),
	})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init principal client: %w", err)
	}
	dependents, err := upstream.New(log, upstream.Config{
		Name:     "dependent",
		BaseURL:  cfg.Dependent.BaseURL,
		Resource: cfg.Dependent.Resource,
		Timeout:  cfg.Dependent.Timeout(),
	})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init dependent client: %w", err)
	}

	exec := executor.New(log, principals, dependents)
	agg := composite.NewAggregator(log, principals, dependents, exec)

	srv := httpserver.NewServer(httpserver.RouterConfig{
		Log:              log,
		CompositeHandler: httpH.NewCompositeHandler(log, agg),
		HealthHandler:    httpH.NewHealthHandler(cfg.Principal.BaseURL, cfg.Dependent.BaseURL),
		ForeignKeyGuard:  httpMW.NewForeignKeyGuard(log, principals, cfg.OwnerRole),
		AllowedOrigins:   cfg.AllowedOrigins,
	})

	return &App{Log: log, Cfg: cfg, Server: srv}, nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil || a.Log == nil {
		return
	}
	a.Log.Sync()
}
