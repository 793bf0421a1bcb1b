// Package telemetry provides OpenTelemetry integration for the Jamf Pro client.
//
// This package manages the lifecycle of OpenTelemetry tracing and holds the
// span attribute names shared by the API client and the inventory exporter.
//
// # Key Components
//
// Manager: Handles OpenTelemetry initialization, lifecycle management, and shutdown.
// The Manager centralizes TracerProvider configuration and ensures proper resource cleanup.
//
// Attributes: Span attribute constants grouped by category (HTTP, Jamf, Scrape).
//
// Error Templates: Operator-facing messages for authentication and content negotiation failures.
//
// # Usage Example
//
//	cfg := telemetry.Config{
//	    Enabled:        true,
//	    Endpoint:       "localhost:4317",
//	    Insecure:       true,
//	    SamplingRate:   1.0,
//	    ServiceName:    "jamfpro",
//	    ServiceVersion: "1.0.0",
//	    JamfServer:     "jamf.example.com",
//	}
//	manager := telemetry.NewManager(cfg)
//	if err := manager.Initialize(ctx); err != nil {
//	    log.Fatalf("Failed to initialize telemetry: %v", err)
//	}
//	defer manager.Shutdown(ctx)
//
// # Sampling Strategies
//
//   - AlwaysSample: Sample all traces (SamplingRate = 1.0)
//   - TraceIDRatioBased: Sample based on trace ID ratio (SamplingRate < 1.0)
//
// If initialization fails the manager disables tracing and the client keeps
// working with a noop tracer.
package telemetry
