package models

import (
	"testing"
	"time"
)

func TestNewImmutableConfig_Success(t *testing.T) {
	cfg := createValidConfig()

	imm, err := NewImmutableConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if imm.JamfURL() != testJamfURL {
		t.Errorf("JamfURL() = %q", imm.JamfURL())
	}
	if imm.UsesClientCredentials() {
		t.Error("expected basic flow")
	}
	if imm.Username() != testUsername || imm.Password() != testPassword {
		t.Errorf("credentials = %q/%q", imm.Username(), imm.Password())
	}
	if imm.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v", imm.Timeout())
	}
	if imm.TokenRefreshBuffer() != 45*time.Second {
		t.Errorf("TokenRefreshBuffer() = %v", imm.TokenRefreshBuffer())
	}
	if imm.RequestsPerMinute() != 60 {
		t.Errorf("RequestsPerMinute() = %d", imm.RequestsPerMinute())
	}
	if imm.ServerAddress() != "0.0.0.0:2112" || imm.MetricsURI() != "/metrics" {
		t.Errorf("server = %q%s", imm.ServerAddress(), imm.MetricsURI())
	}
	if imm.ScrapingInterval() != 5*time.Minute {
		t.Errorf("ScrapingInterval() = %v", imm.ScrapingInterval())
	}
	if imm.LogName() != testLogName {
		t.Errorf("LogName() = %q", imm.LogName())
	}
	if !imm.OTelEnabled() || imm.OTelEndpoint() != testOTELEndpoint || !imm.OTelInsecure() || imm.OTelSamplingRate() != 0.5 {
		t.Error("opentelemetry settings not copied")
	}
	if imm.InsecureSkipVerify() {
		t.Error("InsecureSkipVerify() should be false")
	}
}

func TestNewImmutableConfig_ClientCredentials(t *testing.T) {
	cfg := createValidConfig()
	cfg.Jamf.Username, cfg.Jamf.Password = "", ""
	cfg.Jamf.ClientID, cfg.Jamf.ClientSecret = testClientID, "secret-1234-abcd"

	imm, err := NewImmutableConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !imm.UsesClientCredentials() || imm.ClientID() != testClientID || imm.ClientSecret() != "secret-1234-abcd" {
		t.Error("client credentials not copied")
	}
	if imm.MaskedSecret() != "secr****abcd" {
		t.Errorf("MaskedSecret() = %q", imm.MaskedSecret())
	}
}

func TestNewImmutableConfig_InvalidDurations(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"scraping interval": func(c *Config) { c.Server.ScrapingInterval = "invalid" },
		"timeout":           func(c *Config) { c.Jamf.Timeout = "invalid" },
		"refresh buffer":    func(c *Config) { c.Jamf.TokenRefreshBuffer = "invalid" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := createValidConfig()
			mutate(cfg)
			if _, err := NewImmutableConfig(cfg); err == nil {
				t.Error("expected error for invalid duration")
			}
		})
	}
}

func TestImmutableConfig_MaskedSecretShort(t *testing.T) {
	cfg := createValidConfig()
	cfg.Jamf.Password = "short"
	imm, err := NewImmutableConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if imm.MaskedSecret() != "****" {
		t.Errorf("MaskedSecret() = %q, want ****", imm.MaskedSecret())
	}
}

func TestImmutableConfig_ValuesAreSnapshots(t *testing.T) {
	cfg := createValidConfig()
	imm, err := NewImmutableConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg.Jamf.URL = "https://changed.example.com"
	cfg.Jamf.Password = "changed"

	if imm.JamfURL() != testJamfURL {
		t.Error("ImmutableConfig changed with its source Config")
	}
	if imm.Password() != testPassword {
		t.Error("ImmutableConfig password changed with its source Config")
	}
}
