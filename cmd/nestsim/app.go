package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"

	"nestcore/internal/audit"
	"nestcore/internal/blob"
	"nestcore/internal/config"
	"nestcore/internal/core"
	"nestcore/internal/metrics"
	"nestcore/internal/nest"
	"nestcore/internal/scheduler"
	"nestcore/internal/world"
	"nestcore/pkg/domain"
)

// app is one fully wired nest service with its collaborators.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	world    *world.World
	store    domain.PersistentStore
	ring     *audit.Ring
	nats     *audit.NATSSink
	sched    *scheduler.Scheduler
	service  *core.Service
	archives blob.Store
	// metricsHandler is nil when Prometheus is disabled.
	metricsHandler http.Handler
}

type appOptions struct {
	// schedule subscribes every loaded nest to the real-time tick.
	schedule bool
	// audit publishes to NATS when a URL is configured.
	audit bool
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	worldOpts := cfg.WorldOptions()
	worldOpts.Logger = logger
	a.world = world.New(worldOpts)

	a.store, err = core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.ring = audit.NewRing(cfg.Audit.RingSize)
	sinks := audit.Fanout{audit.LogSink{Logger: logger}, a.ring}
	if opts.audit && cfg.Audit.URL != "" {
		a.nats, err = audit.NewNATSSink(ctx, cfg.Audit.NATSConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("connect audit stream: %w", err)
		}
		sinks = append(sinks, a.nats)
	}

	var sched nest.Scheduler
	if opts.schedule {
		a.sched, err = scheduler.New(logger)
		if err != nil {
			return nil, fmt.Errorf("create scheduler: %w", err)
		}
		sched = a.sched
	}

	var recorder metrics.Recorder
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		a.metricsHandler = metrics.HTTPHandler(reg)
	} else {
		recorder = metrics.NewExpvarRecorder("")
	}

	deps := a.world.Deps(sinks, sched, logger)
	deps.TickInterval = cfg.World.TickInterval
	a.service = core.NewService(a.store, deps,
		core.WithBlocks(cfg.BlockConfigs()...),
		core.WithLogger(logger),
		core.WithMetrics(recorder),
	)

	a.archives, err = blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open archive store: %w", err)
	}
	return a, nil
}

// applyConfig swaps in the parts of a reloaded configuration that can change
// while running.
func (a *app) applyConfig(_ context.Context, cfg *config.Config) error {
	species, items := cfg.Catalog()
	a.world.Catalog.Replace(species, items)
	a.world.Calendar.SetRate(cfg.World.DaysPerSecond)
	a.logger.Info("Configuration reloaded",
		slog.Int("species", len(species)),
		slog.Int("items", len(items)))
	return nil
}

// close unloads every nest, flushes pending state and releases resources.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.sched != nil {
		if err := a.sched.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if a.service != nil {
		if err := a.service.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close service: %w", err))
		}
	}
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit stream: %w", err))
		}
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
