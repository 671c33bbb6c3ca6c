package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherAppliesChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nestcore.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("world:\n  days_per_second: 1\n")

	var (
		mu      sync.Mutex
		applied []float64
	)
	w, err := NewWatcher(path, 20*time.Millisecond, func(_ context.Context, cfg *Config) error {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, cfg.World.DaysPerSecond)
		return nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	write("world:\n  days_per_second: -1\n")
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.Empty(t, applied, "invalid file must not be applied")
	mu.Unlock()

	write("world:\n  days_per_second: 2\n")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) > 0 && applied[len(applied)-1] == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestNewWatcherRequiresApply(t *testing.T) {
	_, err := NewWatcher("nestcore.yaml", 0, nil, nil)
	require.Error(t, err)
}
