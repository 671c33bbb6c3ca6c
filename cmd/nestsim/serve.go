package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"nestcore/internal/config"
	"nestcore/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr  string `help:"Override http.addr"`
	Watch bool   `help:"Reload the species and item catalog when the config file changes" default:"true" negatable:""`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return s.serve(ctx, g, root)
}

func (s *ServeCmd) serve(ctx context.Context, g *Global, root *CLI) (err error) {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.HTTP.Addr = s.Addr
	}

	a, err := newApp(ctx, cfg, g.Logger, appOptions{schedule: true, audit: true})
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		err = errors.Join(err, a.close(stopCtx))
	}()

	a.sched.Start(ctx)
	loaded, err := a.service.LoadNestBoxes(ctx)
	if err != nil {
		return fmt.Errorf("load nests: %w", err)
	}
	g.Logger.Info("Nests loaded", slog.Int("count", loaded))

	if s.Watch && root.Config != "" {
		watcher, err := config.NewWatcher(root.Config, config.DefaultDebounce, a.applyConfig, g.Logger)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	srv := server.New(cfg.HTTP.Addr, server.Deps{
		Service:   a.service,
		Creatures: a.world.Actors,
		Profiles:  a.world.Catalog,
		Archives:  a.archives,
		Audit:     a.ring,
		Metrics:   a.metricsHandler,
		Logger:    g.Logger,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin API: %w", err)
		}
		return nil
	case <-ctx.Done():
		g.Logger.Info("Shutdown signal received, stopping server")
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := srv.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown admin API: %w", err)
	}
	return <-errCh
}
