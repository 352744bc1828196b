package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher("", func(*Config) error { return nil })
	assert.Error(t, err)

	_, err = NewWatcher("config.yaml", nil)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 8080\n"), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, w.Stop(stopCtx))
	}()

	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9090\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9090, cfg.API.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}
}

func TestWatcher_SkipsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 8080\n"), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, w.Stop(stopCtx))
	}()

	// Port 0 fails validation, so the callback must not fire for it.
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 0\n"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, reloaded)

	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9191\n"), 0o600))
	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9191, cfg.API.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed after valid write")
	}
}
