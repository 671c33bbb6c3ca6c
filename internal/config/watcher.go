package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nestcore/internal/logfields"
)

// DefaultDebounce collapses bursts of editor writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// ApplyFunc receives a freshly loaded and validated configuration.
type ApplyFunc func(ctx context.Context, cfg *Config) error

// Watcher monitors the configuration file and re-applies it on change. An
// invalid file is logged and the running configuration is kept.
type Watcher struct {
	path     string
	apply    ApplyFunc
	logger   *slog.Logger
	debounce time.Duration

	watcher    *fsnotify.Watcher
	reloadChan chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewWatcher creates a watcher for path. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, apply ApplyFunc, logger *slog.Logger) (*Watcher, error) {
	if apply == nil {
		return nil, fmt.Errorf("config watcher requires an apply function")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:       absPath,
		apply:      apply,
		logger:     logger,
		debounce:   debounce,
		watcher:    fw,
		reloadChan: make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file; editors that replace the
// file by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	w.logger.Info("Starting configuration watcher", logfields.Path(w.path))
	w.wg.Add(2)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop ends watching and waits for the loops to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				w.trigger()
			case event.Has(fsnotify.Remove):
				w.logger.Warn("Config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	defer w.wg.Done()
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.reloadChan:
			timer.Reset(w.debounce)
		case <-timer.C:
			if err := w.reload(ctx); err != nil {
				w.logger.Error("Failed to reload configuration", logfields.Path(w.path), logfields.Error(err))
			}
		}
	}
}

func (w *Watcher) reload(ctx context.Context) error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := w.apply(ctx, cfg); err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}
	w.logger.Info("Configuration reloaded", logfields.Path(w.path))
	return nil
}
