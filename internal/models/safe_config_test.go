package models

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewSafeConfig(t *testing.T) {
	cfg := createValidConfig()
	sc := NewSafeConfig(cfg)

	if sc == nil {
		t.Fatal("NewSafeConfig returned nil")
	}
	if sc.Get() != cfg {
		t.Error("SafeConfig.Get does not return the original config")
	}
}

func TestSafeConfigConcurrentAccess(t *testing.T) {
	sc := NewSafeConfig(createValidConfig())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := sc.Get()
			_ = got.Server.Host
			_ = got.Jamf.URL
		}()
	}
	wg.Wait()
}

func TestLoadConfig(t *testing.T) {
	clearJamfEnv(t)
	path := writeConfig(t, t.TempDir(), basicConfigYAML)

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Jamf.URL != "https://jamf1.example.com" {
		t.Errorf("URL = %q", cfg.Jamf.URL)
	}
	if cfg.Jamf.Timeout != "1m" {
		t.Errorf("defaults not applied, Timeout = %q", cfg.Jamf.Timeout)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	clearJamfEnv(t)
	t.Setenv(EnvJamfURL, "https://from-env.example.com")
	path := writeConfig(t, t.TempDir(), basicConfigYAML)

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Jamf.URL != "https://from-env.example.com" {
		t.Errorf("URL = %q, want env override", cfg.Jamf.URL)
	}
}

func TestSafeConfigReloadJamfChanged(t *testing.T) {
	clearJamfEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, basicConfigYAML)

	initial, err := LoadConfig(path, "")
	if err != nil {
		t.Fatal(err)
	}
	sc := NewSafeConfig(initial)

	changed, err := sc.ReloadConfig(path, "")
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if changed {
		t.Error("Expected jamfChanged=false for the same file")
	}

	writeConfig(t, dir, strings.Replace(basicConfigYAML, "jamf1.example.com", "jamf9.example.com", 1))
	changed, err = sc.ReloadConfig(path, "")
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !changed {
		t.Error("Expected jamfChanged=true for a different server")
	}
	if got := sc.Get().Jamf.URL; got != "https://jamf9.example.com" {
		t.Errorf("Expected new URL applied, got %s", got)
	}
}

func TestSafeConfigReloadCredentialsChanged(t *testing.T) {
	clearJamfEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, basicConfigYAML)
	initial, err := LoadConfig(path, "")
	if err != nil {
		t.Fatal(err)
	}
	sc := NewSafeConfig(initial)

	writeConfig(t, dir, strings.Replace(basicConfigYAML, "api-password", "rotated-password", 1))
	changed, err := sc.ReloadConfig(path, "")
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !changed {
		t.Error("Expected jamfChanged=true when the password rotates")
	}
}

func TestSafeConfigReloadServerOnlyChange(t *testing.T) {
	clearJamfEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, basicConfigYAML)
	initial, err := LoadConfig(path, "")
	if err != nil {
		t.Fatal(err)
	}
	sc := NewSafeConfig(initial)

	writeConfig(t, dir, strings.Replace(basicConfigYAML, `scrapingInterval: "5m"`, `scrapingInterval: "1m"`, 1))
	changed, err := sc.ReloadConfig(path, "")
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if changed {
		t.Error("a scraping interval change does not require a new client")
	}
	if sc.Get().Server.ScrapingInterval != "1m" {
		t.Error("new scraping interval not applied")
	}
}

func TestSafeConfigReloadFileNotFound(t *testing.T) {
	sc := NewSafeConfig(createValidConfig())

	_, err := sc.ReloadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestSafeConfigReloadInvalidConfig(t *testing.T) {
	clearJamfEnv(t)
	path := writeConfig(t, t.TempDir(), "server:\n  port: \"99999\"\njamf:\n  url: \"https://jamf.example.com\"\n")

	original := createValidConfig()
	sc := NewSafeConfig(original)

	_, err := sc.ReloadConfig(path, "")
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
	if sc.Get() != original {
		t.Error("Original config should be preserved")
	}
}

func TestSafeConfigReloadMalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server: [unclosed\n")
	original := createValidConfig()
	sc := NewSafeConfig(original)

	if _, err := sc.ReloadConfig(path, ""); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	if sc.Get() != original {
		t.Error("Original config should be preserved")
	}
}

func TestSafeConfigConcurrentReload(t *testing.T) {
	clearJamfEnv(t)
	path := writeConfig(t, t.TempDir(), basicConfigYAML)
	sc := NewSafeConfig(createValidConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = sc.Get().Server.Host
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				_, _ = sc.ReloadConfig(path, "")
			}
		}()
	}
	wg.Wait()

	if sc.Get().Jamf.URL != "https://jamf1.example.com" {
		t.Errorf("unexpected final config: %+v", sc.Get().Jamf)
	}
}
