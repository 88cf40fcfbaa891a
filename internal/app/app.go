// Package app wires configuration, the database connector and the HTTP
// pipeline into one explicitly constructed application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TheBackpacker1/AHDProject/internal/config"
	"github.com/TheBackpacker1/AHDProject/internal/db"
	httpx "github.com/TheBackpacker1/AHDProject/internal/http"
	"github.com/TheBackpacker1/AHDProject/internal/resource"
)

// Connector opens the database. db.Connect is the production implementation.
type Connector func(ctx context.Context) (db.Store, error)

// App owns the process-wide state: store, HTTP server and listener.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	connect Connector

	store    db.Store
	server   *http.Server
	listener net.Listener
}

func New(cfg config.Config, logger *zap.Logger, connect Connector) *App {
	return &App{cfg: cfg, logger: logger, connect: connect}
}

// Run starts the app and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Serve(ctx)
}

// Start connects the database, builds the pipeline and binds the listener.
// Nothing is served until Serve is called.
func (a *App) Start(ctx context.Context) error {
	store, err := a.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	handler := a.Handler(store)

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		store.Close()
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}

	a.store = store
	a.listener = listener
	a.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
	}

	a.logger.Info("server running", zap.Int("port", a.Port()), zap.String("addr", listener.Addr().String()))
	return nil
}

// Handler builds the request pipeline with the users and sheep routers mounted.
func (a *App) Handler(store db.Store) http.Handler {
	s := httpx.NewServer(a.logger,
		httpx.WithBodyLimit(a.cfg.BodyLimit),
		httpx.WithLogging(a.cfg.EnableRequestLogging),
		httpx.WithRateLimit(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst),
	)
	s.Mount("/api/users", resource.New("users", store, a.logger))
	s.Mount("/api/sheep", resource.New("sheep", store, a.logger))
	return s
}

// Serve blocks until ctx is cancelled or the server fails, then shuts the
// server down and closes the store.
func (a *App) Serve(ctx context.Context) error {
	if a.server == nil {
		return errors.New("app not started")
	}
	defer a.store.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("graceful shutdown failed", zap.Error(err))
			if closeErr := a.server.Close(); closeErr != nil {
				a.logger.Error("forced close failed", zap.Error(closeErr))
			}
			return err
		}
		return nil
	})
	return g.Wait()
}

// Addr is the bound listener address, nil before Start.
func (a *App) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Port is the bound TCP port, or the configured one before Start.
func (a *App) Port() int {
	if addr, ok := a.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return a.cfg.Port
}
