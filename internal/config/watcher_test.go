package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func waitForCount(count *int32, want int32, timeout time.Duration) int32 {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(count) >= want {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	return atomic.LoadInt32(count)
}

func startWatcher(t *testing.T, configPath string, reloadFn ReloadFunc) {
	t.Helper()
	watcher, err := WatchConfigFile(configPath, reloadFn)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Close() })
	time.Sleep(100 * time.Millisecond)
}

func TestWatchConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, "jamf:\n  url: https://a.example.com\n")

	var reloadCount int32
	var gotPath atomic.Value
	startWatcher(t, configPath, func(path string) error {
		gotPath.Store(path)
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})

	writeFile(t, configPath, "jamf:\n  url: https://b.example.com\n")

	if waitForCount(&reloadCount, 1, 2*time.Second) == 0 {
		t.Fatal("Expected reload to be triggered")
	}
	if gotPath.Load() != configPath {
		t.Errorf("reload called with %v, want %s", gotPath.Load(), configPath)
	}
}

func TestWatchConfigFileAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, configPath, "initial: content")

	var reloadCount int32
	startWatcher(t, configPath, func(string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})

	tempPath := filepath.Join(tmpDir, "config.yaml.tmp")
	writeFile(t, tempPath, "atomic: content")
	if err := os.Rename(tempPath, configPath); err != nil {
		t.Fatalf("Failed to rename temp file: %v", err)
	}

	if waitForCount(&reloadCount, 1, 2*time.Second) == 0 {
		t.Error("Expected reload to be triggered on atomic write")
	}
}

func TestWatchConfigFileDebounce(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, "v: 0")

	var reloadCount int32
	startWatcher(t, configPath, func(string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})

	for i := 0; i < 3; i++ {
		writeFile(t, configPath, "v: burst")
	}

	waitForCount(&reloadCount, 1, 2*time.Second)
	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&reloadCount); got != 1 {
		t.Errorf("Expected a burst of writes to reload once, got %d", got)
	}
}

func TestWatchConfigFileReloadError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, "initial: content")

	var reloadCount int32
	startWatcher(t, configPath, func(string) error {
		atomic.AddInt32(&reloadCount, 1)
		return errors.New("config validation failed")
	})

	writeFile(t, configPath, "first: change")
	if waitForCount(&reloadCount, 1, 2*time.Second) == 0 {
		t.Fatal("Expected reload to be attempted")
	}

	// The watcher keeps running after a failed reload.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, configPath, "second: change")
	if waitForCount(&reloadCount, 2, 2*time.Second) < 2 {
		t.Error("Expected a second reload after a failed one")
	}
}

func TestWatchConfigFileOtherFileIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, configPath, "initial: content")

	var reloadCount int32
	startWatcher(t, configPath, func(string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})

	writeFile(t, filepath.Join(tmpDir, ".env"), "JAMF_URL=https://jamf.example.com")
	time.Sleep(300 * time.Millisecond)

	if atomic.LoadInt32(&reloadCount) != 0 {
		t.Error("Expected no reload for changes to other files")
	}
}

func TestWatchConfigFileNonexistentDir(t *testing.T) {
	_, err := WatchConfigFile("/nonexistent/path/config.yaml", func(string) error { return nil })
	if err == nil {
		t.Error("Expected error for nonexistent directory")
	}
}

func TestWatchConfigFileClose(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := WatchConfigFile(configPath, func(string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	_ = watcher.Close()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, configPath, "updated: content")
	time.Sleep(300 * time.Millisecond)

	if atomic.LoadInt32(&reloadCount) != 0 {
		t.Error("Expected no reload after watcher closed")
	}
}

func TestSetupSIGHUPHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloadCount int32
	SetupSIGHUPHandler(ctx, "/etc/jamfpro/config.yaml", func(path string) error {
		if path != "/etc/jamfpro/config.yaml" {
			t.Errorf("reload called with %q", path)
		}
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})

	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("Failed to send SIGHUP: %v", err)
	}
	if waitForCount(&reloadCount, 1, 2*time.Second) == 0 {
		t.Error("Expected SIGHUP to trigger a reload")
	}
}
