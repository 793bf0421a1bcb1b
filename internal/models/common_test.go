package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fjacquet/jamfpro/internal/testutil"
)

// Shared test constants - aliased from testutil
const (
	testJamfURL           = testutil.TestJamfURL
	testUsername          = testutil.TestUsername
	testPassword          = testutil.TestPassword
	testClientID          = testutil.TestClientID
	testClientSecret      = testutil.TestClientSecret
	testOTELEndpoint      = testutil.TestOTELEndpoint
	testLogName           = testutil.TestLogName
	testInvalidServerPort = testutil.TestInvalidServerPort
)

const basicConfigYAML = `server:
  host: "localhost"
  port: "2112"
  uri: "/metrics"
  scrapingInterval: "5m"
jamf:
  url: "https://jamf1.example.com"
  username: "api-user"
  password: "api-password"
`

const oauthConfigYAML = `server:
  host: "localhost"
  port: "2112"
jamf:
  url: "https://jamf2.example.com/jss"
  clientId: "client-id"
  clientSecret: "client-secret"
  timeout: "20s"
  tokenRefreshBuffer: "1m"
  requestsPerMinute: 120
opentelemetry:
  enabled: true
  endpoint: "localhost:4317"
  insecure: true
`

// clearJamfEnv unsets every JAMF_* override for the duration of the test.
func clearJamfEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvJamfURL, EnvJamfUsername, EnvJamfPassword, EnvJamfClientID, EnvJamfClientSecret} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func createValidConfig() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = "2112"
	cfg.Server.URI = "/metrics"
	cfg.Server.ScrapingInterval = "5m"
	cfg.Server.LogName = testLogName

	cfg.Jamf.URL = testJamfURL
	cfg.Jamf.Username = testUsername
	cfg.Jamf.Password = testPassword
	cfg.Jamf.Timeout = "30s"
	cfg.Jamf.TokenRefreshBuffer = "45s"
	cfg.Jamf.RequestsPerMinute = 60

	cfg.OpenTelemetry.Enabled = true
	cfg.OpenTelemetry.Endpoint = testOTELEndpoint
	cfg.OpenTelemetry.Insecure = true
	cfg.OpenTelemetry.SamplingRate = 0.5

	return cfg
}
