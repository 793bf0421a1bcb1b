package jamf

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics is nil when no registerer was supplied; every method is nil-safe.
type clientMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	exchanges *prometheus.CounterVec
	pages     prometheus.Counter
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jamf_http_requests_total",
			Help: "Requests sent to the Jamf Pro API by method, API family and status code",
		}, []string{"method", "family", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jamf_http_request_duration_seconds",
			Help:    "Latency of Jamf Pro API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "family"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jamf_token_exchanges_total",
			Help: "Bearer token exchanges by authentication flow and result",
		}, []string{"flow", "result"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamf_pagination_pages_total",
			Help: "Follow-up pages fetched while paginating collection endpoints",
		}),
	}

	var err error
	if m.requests, err = registerOrReuse(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrReuse(reg, m.duration); err != nil {
		return nil, err
	}
	if m.exchanges, err = registerOrReuse(reg, m.exchanges); err != nil {
		return nil, err
	}
	if m.pages, err = registerOrReuse(reg, m.pages); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register client metrics")
	}
	return c, nil
}

func (m *clientMetrics) observeRequest(method string, family Family, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, family.String(), code).Inc()
	m.duration.WithLabelValues(method, family.String()).Observe(d.Seconds())
}

func (m *clientMetrics) observeExchange(flow authFlow, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.exchanges.WithLabelValues(flow.String(), result).Inc()
}

func (m *clientMetrics) observePage() {
	if m == nil {
		return
	}
	m.pages.Inc()
}
