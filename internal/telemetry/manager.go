package telemetry

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"
)

// Manager owns the TracerProvider used by the client and the exporter.
// A Manager whose initialization failed stays usable and reports IsEnabled() == false.
type Manager struct {
	enabled        bool
	tracerProvider *sdktrace.TracerProvider
	config         Config
}

// Config holds OpenTelemetry configuration settings for the telemetry manager.
type Config struct {
	// Enabled indicates whether OpenTelemetry tracing is active
	Enabled bool

	// Endpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SamplingRate is the fraction of traces to sample (0.0 to 1.0)
	SamplingRate float64

	// ServiceName is the name of the service for resource attributes
	ServiceName string

	// ServiceVersion is the version of the service for resource attributes
	ServiceVersion string

	// JamfServer is the target Jamf Pro host, recorded as peer.service
	JamfServer string
}

// NewManager creates a new telemetry manager. Nothing is exported until Initialize is called.
func NewManager(cfg Config) *Manager {
	return &Manager{
		enabled: cfg.Enabled,
		config:  cfg,
	}
}

// Initialize creates the OTLP gRPC exporter, builds the TracerProvider with
// batch span processing and the configured sampler, and registers it globally.
//
// Failures are logged and leave the manager disabled; Initialize only returns
// nil so that startup never depends on the collector being reachable.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		logrus.Debug("OpenTelemetry is disabled in configuration")
		return nil
	}

	exporter, err := m.createExporter(ctx)
	if err != nil {
		logrus.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		m.enabled = false
		return nil
	}

	res, err := m.createResource()
	if err != nil {
		logrus.Warnf("Failed to create OpenTelemetry resource: %v. Continuing without tracing.", err)
		m.enabled = false
		return nil
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(m.createSampler()),
	)
	otel.SetTracerProvider(m.tracerProvider)

	logrus.Infof("OpenTelemetry initialized successfully (endpoint: %s, sampling: %.2f)",
		m.config.Endpoint, m.config.SamplingRate)

	return nil
}

func (m *Manager) createExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(m.config.Endpoint),
	}
	if m.config.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

func (m *Manager) createResource() (*resource.Resource, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(m.config.ServiceName),
			semconv.ServiceVersionKey.String(m.config.ServiceVersion),
			semconv.HostNameKey.String(hostname),
		),
	}
	if m.config.JamfServer != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.PeerServiceKey.String(m.config.JamfServer),
		))
	}

	return resource.New(context.Background(), attrs...)
}

func (m *Manager) createSampler() sdktrace.Sampler {
	if m.config.SamplingRate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(m.config.SamplingRate)
}

// Shutdown flushes pending spans. It is a no-op when tracing never started.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.enabled || m.tracerProvider == nil {
		logrus.Debug("OpenTelemetry shutdown skipped (not enabled or not initialized)")
		return nil
	}

	logrus.Info("Shutting down OpenTelemetry TracerProvider...")
	if err := m.tracerProvider.Shutdown(ctx); err != nil {
		logrus.Errorf("Error during OpenTelemetry shutdown: %v", err)
		return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
	}

	logrus.Info("OpenTelemetry shutdown completed successfully")
	return nil
}

// IsEnabled reports whether tracing is configured and operational.
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// TracerProvider returns the provider for explicit injection into the client,
// or nil when telemetry is disabled.
func (m *Manager) TracerProvider() trace.TracerProvider {
	if m.tracerProvider == nil {
		return nil
	}
	return m.tracerProvider
}
