package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/config"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/core"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store/sqlite"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/transport/tcp"
)

// App wires together the message store, session registry, router and the
// TCP transport.
type App struct {
	cfg    config.Config
	server *tcp.Server
	store  store.Store
	log    *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("message store ready")

	registry := core.NewRegistry()
	router := core.NewRouter(registry, st, logger)
	server := tcp.NewServer(cfg, registry, router, st, logger)

	return &App{
		cfg:    cfg,
		server: server,
		store:  st,
		log:    logger,
	}, nil
}

// Run starts the TCP server and blocks until context cancellation or a
// fatal error. On cancellation it waits, bounded by the shutdown timeout,
// for live connections to unwind.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.ListenAndServe(ctx)
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
		select {
		case err := <-serverErr:
			a.cleanup()
			return err
		case <-time.After(a.cfg.ShutdownTimeout):
			a.cleanup()
			return fmt.Errorf("shutdown timed out after %s", a.cfg.ShutdownTimeout)
		}
	}
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
