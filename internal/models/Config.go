// Package models defines the configuration of the jamfpro CLI and exporter.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override the credentials and server URL of the
// configuration file.
const (
	EnvJamfURL          = "JAMF_URL"
	EnvJamfUsername     = "JAMF_USERNAME"
	EnvJamfPassword     = "JAMF_PASSWORD"
	EnvJamfClientID     = "JAMF_CLIENT_ID"
	EnvJamfClientSecret = "JAMF_CLIENT_SECRET"
)

const (
	defaultServerHost         = "localhost"
	defaultServerPort         = "2112"
	defaultServerURI          = "/metrics"
	defaultScrapingInterval   = "5m"
	defaultJamfTimeout        = "1m"
	defaultTokenRefreshBuffer = "30s"
)

// Config represents the complete application configuration.
type Config struct {
	Server struct {
		Port             string `yaml:"port"`
		Host             string `yaml:"host"`
		URI              string `yaml:"uri"`
		ScrapingInterval string `yaml:"scrapingInterval"`
		LogName          string `yaml:"logName"`
	} `yaml:"server"`

	Jamf struct {
		URL                string `yaml:"url"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		ClientID           string `yaml:"clientId"`
		ClientSecret       string `yaml:"clientSecret"`
		InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
		Timeout            string `yaml:"timeout"`
		TokenRefreshBuffer string `yaml:"tokenRefreshBuffer"`
		RequestsPerMinute  int    `yaml:"requestsPerMinute"`
	} `yaml:"jamf"`

	OpenTelemetry struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint"`
		Insecure     bool    `yaml:"insecure"`
		SamplingRate float64 `yaml:"samplingRate"`
	} `yaml:"opentelemetry"`
}

// SetDefaults fills optional fields left empty in the file.
// It is called by Validate.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultServerHost
	}
	if c.Server.Port == "" {
		c.Server.Port = defaultServerPort
	}
	if c.Server.URI == "" {
		c.Server.URI = defaultServerURI
	}
	if c.Server.ScrapingInterval == "" {
		c.Server.ScrapingInterval = defaultScrapingInterval
	}
	if c.Jamf.Timeout == "" {
		c.Jamf.Timeout = defaultJamfTimeout
	}
	if c.Jamf.TokenRefreshBuffer == "" {
		c.Jamf.TokenRefreshBuffer = defaultTokenRefreshBuffer
	}
	if c.OpenTelemetry.Enabled && c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

// ApplyEnv overrides the Jamf URL and credentials with the JAMF_* environment
// variables that are set. When envFile is not empty it is loaded first with
// godotenv; variables already present in the environment win over the file.
//
// A credential pair from the environment replaces the other pair from the
// file, so a file with username/password can be switched to an API client
// without editing it.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvJamfURL); v != "" {
		c.Jamf.URL = v
	}
	user, pass := os.Getenv(EnvJamfUsername), os.Getenv(EnvJamfPassword)
	id, secret := os.Getenv(EnvJamfClientID), os.Getenv(EnvJamfClientSecret)

	if user != "" || pass != "" {
		c.Jamf.Username, c.Jamf.Password = user, pass
		if id == "" && secret == "" {
			c.Jamf.ClientID, c.Jamf.ClientSecret = "", ""
		}
	}
	if id != "" || secret != "" {
		c.Jamf.ClientID, c.Jamf.ClientSecret = id, secret
		if user == "" && pass == "" {
			c.Jamf.Username, c.Jamf.Password = "", ""
		}
	}
	return nil
}

// Validate checks the configuration and returns the first problem found.
// It calls SetDefaults first.
//
// Checked:
//   - server port range, URI and scraping interval
//   - Jamf URL is an absolute http or https URL
//   - exactly one complete credential pair (username/password or clientId/clientSecret)
//   - timeout, token refresh buffer and rate limit
//   - OpenTelemetry endpoint and sampling rate when tracing is enabled
func (c *Config) Validate() error {
	c.SetDefaults()

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}
	if c.Server.URI == "" || c.Server.URI[0] != '/' {
		return fmt.Errorf("invalid server URI: %q (must start with /)", c.Server.URI)
	}
	if d, err := time.ParseDuration(c.Server.ScrapingInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid scraping interval: %s", c.Server.ScrapingInterval)
	}

	if c.Jamf.URL == "" {
		return errors.New("jamf url is required")
	}
	u, err := url.Parse(c.Jamf.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid jamf url: %s (must be an absolute http or https URL)", c.Jamf.URL)
	}
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if d, err := time.ParseDuration(c.Jamf.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid jamf timeout: %s", c.Jamf.Timeout)
	}
	if d, err := time.ParseDuration(c.Jamf.TokenRefreshBuffer); err != nil || d < 0 {
		return fmt.Errorf("invalid jamf token refresh buffer: %s", c.Jamf.TokenRefreshBuffer)
	}
	if c.Jamf.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid jamf requestsPerMinute: %d", c.Jamf.RequestsPerMinute)
	}

	if c.OpenTelemetry.Enabled {
		if c.OpenTelemetry.Endpoint == "" {
			return errors.New("opentelemetry endpoint is required when tracing is enabled")
		}
		if c.OpenTelemetry.SamplingRate < 0 || c.OpenTelemetry.SamplingRate > 1 {
			return fmt.Errorf("invalid opentelemetry samplingRate: %v (must be between 0 and 1)", c.OpenTelemetry.SamplingRate)
		}
	}
	return nil
}

func (c *Config) validateCredentials() error {
	basic := c.Jamf.Username != "" || c.Jamf.Password != ""
	oauth := c.Jamf.ClientID != "" || c.Jamf.ClientSecret != ""
	switch {
	case basic && oauth:
		return errors.New("jamf credentials: set either username/password or clientId/clientSecret, not both")
	case basic && (c.Jamf.Username == "" || c.Jamf.Password == ""):
		return errors.New("jamf credentials: username and password are both required")
	case oauth && (c.Jamf.ClientID == "" || c.Jamf.ClientSecret == ""):
		return errors.New("jamf credentials: clientId and clientSecret are both required")
	case !basic && !oauth:
		return errors.New("jamf credentials are required (username/password or clientId/clientSecret)")
	}
	return nil
}

// UsesClientCredentials reports whether the API client (OAuth2) flow is configured.
func (c *Config) UsesClientCredentials() bool {
	return c.Jamf.ClientID != ""
}

// GetServerAddress returns the complete server address for HTTP server binding.
// Format: host:port
//
// Example: "0.0.0.0:2112"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetScrapingDuration returns the scraping interval as a time.Duration.
func (c *Config) GetScrapingDuration() (time.Duration, error) {
	return time.ParseDuration(c.Server.ScrapingInterval)
}

// GetTimeout returns the Jamf request timeout, zero when unparsable.
func (c *Config) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Jamf.Timeout)
	return d
}

// GetTokenRefreshBuffer returns how early tokens are refreshed, zero when unparsable.
func (c *Config) GetTokenRefreshBuffer() time.Duration {
	d, _ := time.ParseDuration(c.Jamf.TokenRefreshBuffer)
	return d
}

// IsOTelEnabled reports whether OpenTelemetry tracing is configured.
func (c *Config) IsOTelEnabled() bool {
	return c.OpenTelemetry.Enabled
}

// MaskSecret returns the configured password or client secret masked for
// logging: first and last 4 characters kept, "****" for short values.
//
// Example: "abcd1234efgh5678" -> "abcd****5678"
func (c *Config) MaskSecret() string {
	secret := c.Jamf.Password
	if c.UsesClientCredentials() {
		secret = c.Jamf.ClientSecret
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
