// jamfpro is a command line client for the Jamf Pro Classic and Pro APIs and
// a Prometheus exporter for the Jamf Pro inventory.
//
// Usage:
//
//	jamfpro --config config.yaml [--env-file .env] [--debug] <command>
//
// Commands:
//   - get, list, delete, post: call an endpoint and print the JSON answer
//   - create-class: encode a class from a YAML file and create it
//   - serve: expose inventory metrics for Prometheus
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjacquet/jamfpro/internal/config"
	"github.com/fjacquet/jamfpro/internal/exporter"
	"github.com/fjacquet/jamfpro/internal/logging"
	"github.com/fjacquet/jamfpro/internal/models"
	"github.com/fjacquet/jamfpro/internal/telemetry"
	"github.com/fjacquet/jamfpro/jamf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	programName       = "jamfpro"
	programVersion    = "1.0.0"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	healthPath        = "/health"
)

// Server runs the inventory exporter: the HTTP endpoints, the collector and
// the telemetry manager.
//
// Errors from the HTTP listener arrive on ErrorChan instead of ending the
// process, so the caller can still shut down cleanly.
//
//	server, err := NewServer(safeCfg, configPath, envFile)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	select {
//	case <-shutdownSignal:
//	case err := <-server.ErrorChan():
//	}
//	server.Shutdown()
type Server struct {
	safeCfg    *models.SafeConfig
	configPath string
	envFile    string

	cfg              models.ImmutableConfig
	httpSrv          *http.Server
	registry         *prometheus.Registry
	telemetryManager *telemetry.Manager
	tracerProvider   trace.TracerProvider
	collector        *exporter.InventoryCollector

	// reloadMu serializes reloads triggered by SIGHUP and the file watcher.
	reloadMu sync.Mutex

	// serverErrChan is buffered so the listener goroutine never blocks.
	serverErrChan chan error
}

// NewServer prepares a server for the configuration held by safeCfg.
// configPath and envFile are reused by Reload.
func NewServer(safeCfg *models.SafeConfig, configPath, envFile string) (*Server, error) {
	cfg, err := models.NewImmutableConfig(safeCfg.Get())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var telemetryMgr *telemetry.Manager
	if cfg.OTelEnabled() {
		telemetryMgr = telemetry.NewManager(telemetry.Config{
			Enabled:        true,
			Endpoint:       cfg.OTelEndpoint(),
			Insecure:       cfg.OTelInsecure(),
			SamplingRate:   cfg.OTelSamplingRate(),
			ServiceName:    programName,
			ServiceVersion: programVersion,
			JamfServer:     cfg.JamfURL(),
		})
	}

	return &Server{
		safeCfg:          safeCfg,
		configPath:       configPath,
		envFile:          envFile,
		cfg:              cfg,
		registry:         prometheus.NewRegistry(),
		telemetryManager: telemetryMgr,
		serverErrChan:    make(chan error, 1),
	}, nil
}

// Start initializes tracing, builds the Jamf client and the collector,
// registers them and starts serving in the background.
//
// Endpoints:
//   - the configured metrics URI (default /metrics)
//   - /health, which answers 503 when the Jamf Pro server is unreachable
func (s *Server) Start() error {
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.telemetryManager.Initialize(ctx); err != nil {
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}
		if s.telemetryManager.IsEnabled() {
			s.tracerProvider = s.telemetryManager.TracerProvider()
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))
			log.Info("OpenTelemetry trace context propagation configured")
		}
	}

	client, err := s.newClient(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to create jamf client: %w", err)
	}

	s.collector = exporter.NewInventoryCollector(client,
		exporter.WithCollectorTracerProvider(s.tracerProvider),
		exporter.WithCollectionTimeout(s.cfg.ScrapingInterval()),
	)
	if err := s.registry.Register(s.collector); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	if s.tracerProvider != nil {
		metricsHandler = extractTraceContextMiddleware(metricsHandler)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.MetricsURI(), metricsHandler)
	mux.HandleFunc(healthPath, s.healthHandler)

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ServerAddress(),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Infof("Starting %s exporter on %s%s", programName, s.cfg.ServerAddress(), s.cfg.MetricsURI())
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return nil
}

// newClient builds a Jamf client that reports into the server's registry.
func (s *Server) newClient(cfg models.ImmutableConfig) (*jamf.Client, error) {
	return newJamfClient(cfg,
		jamf.WithTracerProvider(s.tracerProvider),
		jamf.WithRegisterer(s.registry),
	)
}

// Reload re-reads the configuration file. When the Jamf URL or credentials
// changed, a new client replaces the collector's one; other changes apply
// on the next start.
func (s *Server) Reload(configPath string) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	jamfChanged, err := s.safeCfg.ReloadConfig(configPath, s.envFile)
	if err != nil {
		return err
	}
	if !jamfChanged || s.collector == nil {
		return nil
	}

	cfg, err := models.NewImmutableConfig(s.safeCfg.Get())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	client, err := s.newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create jamf client: %w", err)
	}
	s.collector.SetClient(client)
	s.cfg = cfg

	log.WithField("url", cfg.JamfURL()).Info("Jamf client rebuilt after configuration change")
	return nil
}

// ErrorChan returns the channel that receives listener errors.
func (s *Server) ErrorChan() <-chan error {
	return s.serverErrChan
}

// Shutdown stops the HTTP server, flushes telemetry and closes the Jamf
// client, in that order, so spans of in-flight requests are exported before
// connections close.
func (s *Server) Shutdown() error {
	var errs []error

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down HTTP server...")
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.telemetryManager.Shutdown(ctx); err != nil {
			log.Warnf("Telemetry shutdown warning: %v", err)
		}
	}

	if s.collector != nil {
		log.Info("Closing Jamf client connections...")
		if err := s.collector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client close: %w", err))
		}
	}

	close(s.serverErrChan)

	if len(errs) > 0 {
		log.Errorf("Shutdown completed with %d errors", len(errs))
		return errs[0]
	}
	log.Info("Server stopped gracefully")
	return nil
}

// extractTraceContextMiddleware continues the caller's trace, if any, into the scrape.
func extractTraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.collector.TestConnectivity(r.Context()); err != nil {
		log.WithError(err).Warn("Health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "UNAVAILABLE: %s\n", jamf.KindOf(err))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

// waitForShutdown blocks until SIGINT, SIGTERM, ctx ending or a server error.
// Only a server error is returned.
func waitForShutdown(ctx context.Context, serverErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)
		return nil
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return err
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose Jamf Pro inventory metrics for Prometheus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			log.Infof("Starting %s %s...", programName, programVersion)
			log.Infof("Jamf Pro server: %s", cfg.Jamf.URL)
			log.Infof("Scraping interval: %s", cfg.Server.ScrapingInterval)
			if opts.debug {
				log.Infof("Secret: %s", cfg.MaskSecret())
			}

			server, err := NewServer(models.NewSafeConfig(cfg), opts.configFile, opts.envFile)
			if err != nil {
				return err
			}
			if err := server.Start(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			config.SetupSIGHUPHandler(ctx, opts.configFile, server.Reload)
			if watcher, err := config.WatchConfigFile(opts.configFile, server.Reload); err != nil {
				log.Warnf("File watcher setup failed: %v", err)
			} else {
				defer func() { _ = watcher.Close() }()
			}

			if err := waitForShutdown(ctx, server.ErrorChan()); err != nil {
				log.Errorf("Server error: %v", err)
			}
			return server.Shutdown()
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.LogError(err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
