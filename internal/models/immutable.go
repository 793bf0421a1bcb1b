package models

import (
	"time"
)

// ImmutableConfig holds the values the CLI and exporter run with, parsed once
// from a validated Config. It has no setters and all accessors return copies,
// so it can be shared between goroutines without locking.
//
// Config stays the YAML shape; ImmutableConfig is what the Jamf client,
// the HTTP server and the telemetry manager are built from.
type ImmutableConfig struct {
	// Jamf connection settings
	jamfURL            string
	username           string
	password           string
	clientID           string
	clientSecret       string
	insecureSkipVerify bool
	timeout            time.Duration
	refreshBuffer      time.Duration
	requestsPerMinute  int

	// Server settings
	serverAddress    string
	metricsURI       string
	scrapingInterval time.Duration
	logName          string

	// OpenTelemetry settings
	otelEnabled      bool
	otelEndpoint     string
	otelInsecure     bool
	otelSamplingRate float64
}

// NewImmutableConfig creates an ImmutableConfig from a Config that passed
// Validate. Returns an error if a duration cannot be parsed.
func NewImmutableConfig(cfg *Config) (ImmutableConfig, error) {
	scrapingDuration, err := cfg.GetScrapingDuration()
	if err != nil {
		return ImmutableConfig{}, err
	}
	timeout, err := time.ParseDuration(cfg.Jamf.Timeout)
	if err != nil {
		return ImmutableConfig{}, err
	}
	refreshBuffer, err := time.ParseDuration(cfg.Jamf.TokenRefreshBuffer)
	if err != nil {
		return ImmutableConfig{}, err
	}

	return ImmutableConfig{
		jamfURL:            cfg.Jamf.URL,
		username:           cfg.Jamf.Username,
		password:           cfg.Jamf.Password,
		clientID:           cfg.Jamf.ClientID,
		clientSecret:       cfg.Jamf.ClientSecret,
		insecureSkipVerify: cfg.Jamf.InsecureSkipVerify,
		timeout:            timeout,
		refreshBuffer:      refreshBuffer,
		requestsPerMinute:  cfg.Jamf.RequestsPerMinute,

		serverAddress:    cfg.GetServerAddress(),
		metricsURI:       cfg.Server.URI,
		scrapingInterval: scrapingDuration,
		logName:          cfg.Server.LogName,

		otelEnabled:      cfg.OpenTelemetry.Enabled,
		otelEndpoint:     cfg.OpenTelemetry.Endpoint,
		otelInsecure:     cfg.OpenTelemetry.Insecure,
		otelSamplingRate: cfg.OpenTelemetry.SamplingRate,
	}, nil
}

// JamfURL returns the Jamf Pro server URL.
func (c ImmutableConfig) JamfURL() string {
	return c.jamfURL
}

// UsesClientCredentials reports whether the OAuth2 client credentials flow is configured.
func (c ImmutableConfig) UsesClientCredentials() bool {
	return c.clientID != ""
}

// Username returns the Basic flow username.
func (c ImmutableConfig) Username() string {
	return c.username
}

// Password returns the Basic flow password.
// SECURITY: Handle with care - do not log this value.
func (c ImmutableConfig) Password() string {
	return c.password
}

// ClientID returns the API client id.
func (c ImmutableConfig) ClientID() string {
	return c.clientID
}

// ClientSecret returns the API client secret.
// SECURITY: Handle with care - do not log this value.
func (c ImmutableConfig) ClientSecret() string {
	return c.clientSecret
}

// InsecureSkipVerify returns whether TLS verification is disabled.
func (c ImmutableConfig) InsecureSkipVerify() bool {
	return c.insecureSkipVerify
}

// Timeout returns the per-request timeout.
func (c ImmutableConfig) Timeout() time.Duration {
	return c.timeout
}

// TokenRefreshBuffer returns how long before expiry a token is refreshed.
func (c ImmutableConfig) TokenRefreshBuffer() time.Duration {
	return c.refreshBuffer
}

// RequestsPerMinute returns the client-side rate limit, 0 for none.
func (c ImmutableConfig) RequestsPerMinute() int {
	return c.requestsPerMinute
}

// ServerAddress returns the HTTP server bind address (host:port).
func (c ImmutableConfig) ServerAddress() string {
	return c.serverAddress
}

// MetricsURI returns the metrics endpoint URI path.
func (c ImmutableConfig) MetricsURI() string {
	return c.metricsURI
}

// ScrapingInterval returns how often the inventory is refreshed.
func (c ImmutableConfig) ScrapingInterval() time.Duration {
	return c.scrapingInterval
}

// LogName returns the log file name.
func (c ImmutableConfig) LogName() string {
	return c.logName
}

// OTelEnabled returns whether OpenTelemetry is enabled.
func (c ImmutableConfig) OTelEnabled() bool {
	return c.otelEnabled
}

// OTelEndpoint returns the OTLP endpoint address.
func (c ImmutableConfig) OTelEndpoint() string {
	return c.otelEndpoint
}

// OTelInsecure returns whether OTLP uses insecure connection.
func (c ImmutableConfig) OTelInsecure() bool {
	return c.otelInsecure
}

// OTelSamplingRate returns the trace sampling rate.
func (c ImmutableConfig) OTelSamplingRate() float64 {
	return c.otelSamplingRate
}

// MaskedSecret returns the password or client secret masked for safe logging.
func (c ImmutableConfig) MaskedSecret() string {
	secret := c.password
	if c.UsesClientCredentials() {
		secret = c.clientSecret
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
