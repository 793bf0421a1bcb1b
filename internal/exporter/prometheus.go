package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fjacquet/jamfpro/jamf"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCollectionTimeout = 2 * time.Minute

	computersEndpoint     = "api/v1/computers-inventory?section=GENERAL"
	mobileDevicesEndpoint = "api/v2/mobile-devices"
	versionEndpoint       = "api/v1/jamf-pro-version"

	unknownDeviceType = "unknown"
)

// CollectorOption configures optional InventoryCollector settings.
type CollectorOption func(*collectorOptions)

type collectorOptions struct {
	tracerProvider trace.TracerProvider
	timeout        time.Duration
}

// WithCollectorTracerProvider sets the TracerProvider for scrape spans.
// Without it spans go to a noop tracer.
func WithCollectorTracerProvider(tp trace.TracerProvider) CollectorOption {
	return func(o *collectorOptions) {
		o.tracerProvider = tp
	}
}

// WithCollectionTimeout bounds how long one scrape may spend on the Jamf API.
func WithCollectionTimeout(d time.Duration) CollectorOption {
	return func(o *collectorOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// InventoryCollector implements prometheus.Collector over a Jamf Pro server.
//
// Every scrape pages through the computer and mobile device inventories and
// exposes:
//   - jamf_computers: number of computers in the inventory
//   - jamf_mobile_devices{type}: number of mobile devices per device type
//   - jamf_pro_version_info{version}: constant 1, labelled with the server version
//   - jamf_scrape_duration_ms: time spent talking to the API during the scrape
//   - jamf_up: 1 when at least one inventory could be fetched
//
// A failing inventory is left out of the scrape rather than reported as zero.
type InventoryCollector struct {
	clientMu sync.RWMutex
	client   InventoryClient

	tracing *jamf.TracerWrapper
	timeout time.Duration

	scrapeMu        sync.RWMutex
	lastSuccessTime time.Time

	computers      *prometheus.Desc
	mobileDevices  *prometheus.Desc
	versionInfo    *prometheus.Desc
	scrapeDuration *prometheus.Desc
	up             *prometheus.Desc
}

// NewInventoryCollector creates a collector reading from client.
//
//	client, _ := jamf.New(url, creds)
//	prometheus.MustRegister(exporter.NewInventoryCollector(client))
func NewInventoryCollector(client InventoryClient, opts ...CollectorOption) *InventoryCollector {
	options := collectorOptions{timeout: defaultCollectionTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	return &InventoryCollector{
		client:  client,
		tracing: jamf.NewTracerWrapper(options.tracerProvider, "jamfpro/exporter"),
		timeout: options.timeout,
		computers: prometheus.NewDesc(
			"jamf_computers",
			"Number of computers in the Jamf Pro inventory",
			nil, nil,
		),
		mobileDevices: prometheus.NewDesc(
			"jamf_mobile_devices",
			"Number of mobile devices in the Jamf Pro inventory by device type",
			[]string{"type"}, nil,
		),
		versionInfo: prometheus.NewDesc(
			"jamf_pro_version_info",
			"The Jamf Pro server version",
			[]string{"version"}, nil,
		),
		scrapeDuration: prometheus.NewDesc(
			"jamf_scrape_duration_ms",
			"Time spent collecting the inventory from Jamf Pro in milliseconds",
			nil, nil,
		),
		up: prometheus.NewDesc(
			"jamf_up",
			"Whether the last inventory collection reached the Jamf Pro server",
			nil, nil,
		),
	}
}

// Describe sends the descriptors of each metric to ch.
func (c *InventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.computers
	ch <- c.mobileDevices
	ch <- c.versionInfo
	ch <- c.scrapeDuration
	ch <- c.up
}

// Collect fetches the inventory and sends the resulting metrics to ch.
// Errors are logged and recorded on the scrape span; whatever was fetched is
// still exposed.
func (c *InventoryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	ctx, span := c.startScrapeSpan(ctx)
	defer span.End()

	snap := c.fetch(ctx, span)
	elapsed := time.Since(start)
	finishScrapeSpan(span, start, snap)

	if snap.status() != scrapeStatusFailure {
		c.scrapeMu.Lock()
		c.lastSuccessTime = time.Now()
		c.scrapeMu.Unlock()
	}

	c.expose(ch, snap, elapsed)

	log.WithFields(log.Fields{
		"computers":      snap.computers,
		"mobile_devices": snap.mobileTotal(),
		"status":         snap.status(),
		"duration_ms":    elapsed.Milliseconds(),
	}).Debug("Inventory collected")
}

// snapshot is the outcome of one scrape.
type snapshot struct {
	computers    int
	computersErr error
	mobile       map[string]int
	mobileErr    error
	version      string
}

func (s snapshot) status() string {
	switch {
	case s.computersErr == nil && s.mobileErr == nil:
		return scrapeStatusSuccess
	case s.computersErr != nil && s.mobileErr != nil:
		return scrapeStatusFailure
	default:
		return scrapeStatusPartial
	}
}

func (s snapshot) mobileTotal() int {
	total := 0
	for _, n := range s.mobile {
		total += n
	}
	return total
}

type mobileDevice struct {
	Type string `json:"type"`
}

type proVersion struct {
	Version string `json:"version"`
}

func (c *InventoryCollector) fetch(ctx context.Context, span trace.Span) snapshot {
	client := c.currentClient()
	var snap snapshot

	computers, err := client.PerformPaginated(ctx, computersEndpoint, jamf.Pro)
	if err != nil {
		log.WithError(err).Error("Failed to fetch computers inventory")
		recordFetchError(span, "computers_fetch_error", err)
		snap.computersErr = err
	} else {
		snap.computers = len(computers)
	}

	snap.mobile, snap.mobileErr = c.fetchMobileDevices(ctx, client)
	if snap.mobileErr != nil {
		log.WithError(snap.mobileErr).Error("Failed to fetch mobile devices inventory")
		recordFetchError(span, "mobile_devices_fetch_error", snap.mobileErr)
	}

	snap.version = fetchVersion(ctx, client)
	return snap
}

func (c *InventoryCollector) fetchMobileDevices(ctx context.Context, client InventoryClient) (map[string]int, error) {
	raw, err := client.PerformPaginated(ctx, mobileDevicesEndpoint, jamf.Pro)
	if err != nil {
		return nil, err
	}
	devices, err := jamf.DecodeRecords[mobileDevice](raw)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int)
	for _, d := range devices {
		t := d.Type
		if t == "" {
			t = unknownDeviceType
		}
		byType[t]++
	}
	return byType, nil
}

// fetchVersion returns "" when the version endpoint is unavailable; the
// version is informational and never fails a scrape.
func fetchVersion(ctx context.Context, client InventoryClient) string {
	res, err := client.Perform(ctx, versionEndpoint, http.MethodGet, nil, jamf.Pro)
	if err != nil {
		log.WithError(err).Debug("Jamf Pro version unavailable")
		return ""
	}
	var v proVersion
	if err := json.Unmarshal(res.Body, &v); err != nil {
		log.WithError(err).Debug("Malformed Jamf Pro version answer")
		return ""
	}
	return v.Version
}

func (c *InventoryCollector) expose(ch chan<- prometheus.Metric, snap snapshot, elapsed time.Duration) {
	if snap.computersErr == nil {
		ch <- prometheus.MustNewConstMetric(c.computers, prometheus.GaugeValue, float64(snap.computers))
	}
	if snap.mobileErr == nil {
		types := make([]string, 0, len(snap.mobile))
		for t := range snap.mobile {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			ch <- prometheus.MustNewConstMetric(c.mobileDevices, prometheus.GaugeValue, float64(snap.mobile[t]), t)
		}
	}
	if snap.version != "" {
		ch <- prometheus.MustNewConstMetric(c.versionInfo, prometheus.GaugeValue, 1, snap.version)
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeDuration, prometheus.GaugeValue, float64(elapsed.Milliseconds()))

	up := 0.0
	if snap.status() != scrapeStatusFailure {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up)
}

func (c *InventoryCollector) currentClient() InventoryClient {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.client
}

// SetClient swaps the client used by later scrapes, for instance after the
// Jamf URL or credentials were reloaded, and closes the previous one.
func (c *InventoryCollector) SetClient(client InventoryClient) {
	c.clientMu.Lock()
	old := c.client
	c.client = client
	c.clientMu.Unlock()

	if old != nil && old != client {
		go func() {
			if err := old.Close(); err != nil {
				log.WithError(err).Debug("Closing previous Jamf client")
			}
		}()
	}
}

// Close releases the current client.
func (c *InventoryCollector) Close() error {
	return c.currentClient().Close()
}
