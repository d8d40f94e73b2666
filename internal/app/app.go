// Package app wires storage, the wheel service, the event hub and the HTTP
// server into one process with a start/stop lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/api"
	"github.com/MJE43/fortune-wheel-go/internal/config"
	"github.com/MJE43/fortune-wheel-go/internal/events"
	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
	"github.com/MJE43/fortune-wheel-go/internal/service"
	"github.com/MJE43/fortune-wheel-go/internal/store"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// App owns the database and the HTTP server.
type App struct {
	cfg *config.Config
	log *slog.Logger

	db  store.DB
	hub *events.Hub

	httpServer *http.Server
	listener   net.Listener
	stopHub    context.CancelFunc
	hubDone    chan struct{}
	serveErr   chan error
}

// New opens storage and builds the components. Nothing listens until
// Startup is called.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	db, err := store.Open(ctx, store.Options{
		Driver:      cfg.Storage.Driver,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hub := events.NewHub(log.With(slog.String("component", "events")), cfg.CORS.AllowedOrigins)

	svc := service.New(db, service.Options{
		Seed: cfg.Spin.Seed,
		Selector: wheel.SelectorConfig{
			CorrectionStrength: cfg.Spin.CorrectionStrength,
			DecayCeiling:       cfg.Spin.DecayCeiling,
		},
		ExtraRotations: cfg.Spin.ExtraRotations,
		BorderRatio:    cfg.Spin.BorderRatio,
		Duration:       cfg.Spin.Duration,
	}, log.With(slog.String("component", "service")), hub)

	srv := api.NewServer(svc, db, log, api.Options{
		Timeout:        cfg.HTTPServer.Timeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Token:          cfg.Token,
		Events:         http.HandlerFunc(hub.ServeWS),
	})

	return &App{
		cfg: cfg,
		log: log,
		db:  db,
		hub: hub,
		httpServer: &http.Server{
			Addr:         cfg.HTTPServer.Address,
			Handler:      srv.Routes(),
			ReadTimeout:  cfg.HTTPServer.Timeout,
			WriteTimeout: cfg.HTTPServer.Timeout * 2,
			IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		},
		hubDone:  make(chan struct{}),
		serveErr: make(chan error, 1),
	}, nil
}

// Startup starts the event hub and begins serving in a goroutine. It
// returns once the socket is bound.
func (a *App) Startup(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.httpServer.Addr, err)
	}
	a.listener = ln

	hubCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopHub = cancel
	go func() {
		a.hub.Run(hubCtx)
		close(a.hubDone)
	}()

	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server failed", sl.Err(err))
			a.serveErr <- err
		}
		close(a.serveErr)
	}()

	a.log.Info("server started",
		slog.String("address", ln.Addr().String()),
		slog.String("storage", a.cfg.Storage.Driver),
		slog.Bool("token_enabled", a.cfg.Token != ""),
	)
	return nil
}

// Addr is the bound listen address. Empty before Startup.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Errors reports a serve failure. It is closed when the server stops.
func (a *App) Errors() <-chan error {
	return a.serveErr
}

// Shutdown stops accepting requests, disconnects event clients and closes
// the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.listener != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
		}
	}
	if a.stopHub != nil {
		a.stopHub()
		select {
		case <-a.hubDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("app: hub shutdown: %w", ctx.Err()))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("app: close db: %w", err))
	}

	a.log.Info("server stopped")
	return errors.Join(errs...)
}
