package models

import (
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// SafeConfig provides thread-safe access to configuration.
// It uses RWMutex to allow concurrent reads while serializing writes.
// Pattern from Prometheus blackbox_exporter.
//
// Usage:
//
//	safeCfg := NewSafeConfig(cfg)
//	current := safeCfg.Get()
//	changed, err := safeCfg.ReloadConfig("/path/to/config.yaml", ".env")
type SafeConfig struct {
	mu sync.RWMutex
	C  *Config
}

// NewSafeConfig creates a new SafeConfig with the provided initial config.
// The config is stored by reference; the caller should not modify it after
// passing it to NewSafeConfig.
func NewSafeConfig(cfg *Config) *SafeConfig {
	return &SafeConfig{
		C: cfg,
	}
}

// Get returns the current configuration (read-locked).
// The returned pointer is safe to use until the next reload.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.C
}

// LoadConfig reads configPath, applies the JAMF_* environment overrides
// (loading envFile first when set) and validates the result.
func LoadConfig(configPath, envFile string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ReloadConfig loads and validates a new configuration from the file.
// Validation happens BEFORE acquiring write lock (fail-fast pattern), so an
// invalid file never replaces the running configuration.
//
// Returns:
//   - jamfChanged: true if the Jamf URL or credentials changed (the client must be rebuilt)
//   - err: error if file cannot be read or validation fails
func (sc *SafeConfig) ReloadConfig(configPath, envFile string) (jamfChanged bool, err error) {
	newCfg, err := LoadConfig(configPath, envFile)
	if err != nil {
		return false, err
	}

	sc.mu.Lock()
	old := sc.C
	sc.C = newCfg
	sc.mu.Unlock()

	jamfChanged = old == nil || old.Jamf != newCfg.Jamf

	log.Info("Configuration reloaded successfully")
	if jamfChanged {
		log.Info("Jamf server or credentials changed, client will be rebuilt")
	}

	return jamfChanged, nil
}
