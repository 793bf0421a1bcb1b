package jamf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Option configures optional Client settings.
type Option func(*clientOptions)

type clientOptions struct {
	timeout            time.Duration
	insecureSkipVerify bool
	refreshBuffer      time.Duration
	requestsPerMinute  int
	logger             logrus.FieldLogger
	tracerProvider     trace.TracerProvider
	registerer         prometheus.Registerer
	now                func() time.Time
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		timeout:       defaultTimeout,
		refreshBuffer: defaultRefreshBuffer,
		logger:        logrus.StandardLogger(),
		now:           time.Now,
	}
}

// WithTimeout bounds every HTTP exchange, including the token exchange.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Test servers only.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *clientOptions) {
		o.insecureSkipVerify = skip
	}
}

// WithTokenRefreshBuffer sets how long before the server-declared expiry a token
// is considered expired. Values under one second are raised to one second, and
// the buffer never exceeds half of a token's lifetime.
func WithTokenRefreshBuffer(d time.Duration) Option {
	return func(o *clientOptions) {
		o.refreshBuffer = d
	}
}

// WithRateLimit caps outgoing requests per minute. Zero disables the limiter.
func WithRateLimit(requestsPerMinute int) Option {
	return func(o *clientOptions) {
		o.requestsPerMinute = requestsPerMinute
	}
}

// WithLogger routes client logs to l instead of the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracerProvider sets the TracerProvider for distributed tracing.
// Without it spans go to a noop provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// WithRegisterer registers the client's Prometheus metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

// withClock replaces time.Now; used by tests that move time past a token's expiry.
func withClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}
