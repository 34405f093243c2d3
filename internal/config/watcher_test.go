package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, yaml string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	// Some filesystems have coarse mtime resolution; nudge it forward so the
	// watcher's mtime fast path sees the change.
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "server:\n  log_level: info\n")

	var mu sync.Mutex
	var gotOld, gotNew *Config
	changed := make(chan struct{}, 1)

	w, err := NewWatcher(path, func(old, new *Config) {
		mu.Lock()
		gotOld, gotNew = old, new
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Current().Server.LogLevel != LogInfo {
		t.Fatalf("initial log level = %q", w.Current().Server.LogLevel)
	}

	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "server:\n  log_level: debug\n")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("reload never observed")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotOld.Server.LogLevel != LogInfo || gotNew.Server.LogLevel != LogDebug {
		t.Errorf("diff = %q -> %q", gotOld.Server.LogLevel, gotNew.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != LogDebug {
		t.Errorf("current = %q", w.Current().Server.LogLevel)
	}
}

func TestWatcherKeepsConfigOnInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "server:\n  log_level: info\n")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "server:\n  log_level: loud\n")
	time.Sleep(50 * time.Millisecond)

	if w.Current().Server.LogLevel != LogInfo {
		t.Errorf("invalid file replaced the config: %q", w.Current().Server.LogLevel)
	}
}

func TestWatcherInitialLoadFailure(t *testing.T) {
	t.Parallel()

	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("missing file accepted")
	}
}
