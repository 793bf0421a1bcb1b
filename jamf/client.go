// Package jamf is a client for the Jamf Pro server API. It speaks both API
// generations through one Client: the XML-bodied Classic API under
// JSSResource/ and the JSON Pro API under api/vN/.
//
// The Client authenticates with either username/password (Basic token
// exchange) or an API client id/secret (OAuth2 client credentials), keeps a
// single bearer token and refreshes it when it expires, and transparently
// walks paginated Pro API collections.
//
// Every operation returns either a value or a *Error whose Kind tells the
// caller what went wrong:
//
//	client, err := jamf.New("https://jamf.example.com", jamf.ClientCredentials(id, secret))
//	if err != nil {
//	    return err
//	}
//	devices, err := client.ProMobileDevices(ctx)
//	if errors.Is(err, jamf.ErrAuthentication) {
//	    ...
//	}
package jamf

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/fjacquet/jamfpro/internal/telemetry"
)

const (
	defaultTimeout = 1 * time.Minute

	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"

	// Connection pool configuration
	maxIdleConns        = 100
	maxIdleConnsPerHost = 20
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second

	closeTimeout = 30 * time.Second
)

// HTTP header names set on every request.
const (
	HeaderAccept        = "Accept"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
)

// Family selects the API generation an endpoint belongs to.
type Family int

const (
	// Classic is the legacy XML-bodied API under JSSResource/.
	Classic Family = iota
	// Pro is the versioned JSON API under api/.
	Pro
)

func (f Family) String() string {
	if f == Classic {
		return "classic"
	}
	return "pro"
}

// ContentType is the request body media type the family expects.
func (f Family) ContentType() string {
	if f == Classic {
		return contentTypeXML
	}
	return contentTypeJSON
}

// Result is the success half of Perform.
type Result struct {
	StatusCode int
	Header     http.Header
	// Body is the raw body of the first (or only) response.
	Body []byte
	// ID is the identifier of a created or updated resource, when the
	// response carried one (<id> for Classic, "id" for Pro).
	ID string
	// Paginated is true when Body was the first page of a collection and
	// Records holds every record of every page, in server order.
	Paginated  bool
	TotalCount int
	Records    []json.RawMessage
}

// Client is safe for concurrent use. The bearer token is the only state
// shared between calls.
type Client struct {
	baseURL *url.URL
	http    *resty.Client
	tokens  *TokenManager
	log     logrus.FieldLogger
	tracing *TracerWrapper
	metrics *clientMetrics
	limiter *rate.Limiter

	// Connection tracking for Close
	mu         sync.Mutex
	activeReqs int32
	closed     bool
	closeChan  chan struct{}
}

// New builds a Client for the server at baseURL.
//
// No request is sent: the first call (or Authenticate) performs the token
// exchange. baseURL must be an absolute http or https URL; it may carry a
// context path such as https://host:8443/jss.
//
// Example:
//
//	client, err := jamf.New("https://jamf.example.com",
//	    jamf.BasicCredentials("api-user", "secret"),
//	    jamf.WithTimeout(30*time.Second),
//	    jamf.WithRegisterer(prometheus.DefaultRegisterer),
//	)
func New(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	flow, err := creds.flow()
	if err != nil {
		return nil, err
	}
	metrics, err := newClientMetrics(options.registerer)
	if err != nil {
		return nil, err
	}

	if options.insecureSkipVerify {
		options.logger.Error("SECURITY WARNING: TLS certificate verification disabled - this is insecure for production use")
	}

	httpClient := resty.New().
		SetTimeout(options.timeout).
		SetRetryCount(0)
	httpClient.GetClient().Transport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: options.insecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}

	var limiter *rate.Limiter
	if options.requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(options.requestsPerMinute)/60.0), options.requestsPerMinute)
	}

	tracing := NewTracerWrapper(options.tracerProvider, "jamfpro/client")

	return &Client{
		baseURL: base,
		http:    httpClient,
		tokens:  newTokenManager(httpClient, base, creds, flow, options, tracing, metrics),
		log:     options.logger,
		tracing: tracing,
		metrics: metrics,
		limiter: limiter,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Newf("invalid base URL %q: must be an absolute http or https URL", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the server URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Tokens exposes the client's token manager.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// Authenticate performs the token exchange now if no valid token is cached.
// Useful to surface bad credentials at startup.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.tokens.CurrentToken(ctx)
	return err
}

// URL joins endpoint onto the base URL. See joinURL.
func (c *Client) URL(endpoint string) (string, error) {
	return joinURL(c.baseURL, endpoint)
}

// joinURL appends endpoint to base with exactly one slash between them.
// A query string on endpoint is kept; base's own query is ignored.
//
// Example: "https://example.com/" + "api/v1/x" and "https://example.com" + "/api/v1/x"
// both give "https://example.com/api/v1/x".
func joinURL(base *url.URL, endpoint string) (string, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint %q", endpoint)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", errors.Newf("invalid endpoint %q: must be relative to the server URL", endpoint)
	}

	u := *base
	basePath := strings.TrimRight(base.Path, "/")
	refPath := strings.TrimLeft(ref.Path, "/")
	u.Path = basePath + "/" + refPath
	u.RawPath = ""
	if base.RawPath != "" || ref.RawPath != "" {
		u.RawPath = strings.TrimRight(base.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
	}
	u.RawQuery = ref.RawQuery
	u.Fragment = ""
	return u.String(), nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func supportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Perform sends one request and returns its Result.
//
// The bearer token is attached (refreshed first if expired), Content-Type
// follows the API family, and Accept is always application/json. body may be
// nil for GET and DELETE.
//
// A GET whose JSON body carries "totalCount" is treated as the first page of
// a collection: the remaining pages are fetched in order and
// Result.Records holds all of them.
//
// Returns a *Error:
//   - KindAuthentication when no token could be obtained (no request is sent)
//   - KindNetwork on transport failures
//   - KindProtocol on non-2xx answers, unsupported methods and malformed pages
//   - KindCanceled when ctx ends
func (c *Client) Perform(ctx context.Context, endpoint, method string, body []byte, family Family) (*Result, error) {
	method = strings.ToUpper(method)
	target, err := c.URL(endpoint)
	if err != nil {
		return nil, protocolError(method, endpoint, 0, nil, "%v", err)
	}
	if !supportedMethod(method) {
		return nil, protocolError(method, target, 0, nil, "unsupported method")
	}

	ctx, span := c.tracing.StartSpan(ctx, "jamf.perform", trace.SpanKindInternal)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrJamfEndpoint, endpoint),
		attribute.String(telemetry.AttrJamfAPIFamily, family.String()),
	)

	resp, err := c.do(ctx, method, target, body, family)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	result := &Result{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}

	switch method {
	case http.MethodGet:
		if first, ok := parsePage(result.Body); ok {
			records, total, err := c.paginate(ctx, target, family, result.StatusCode, first)
			if err != nil {
				recordError(span, err)
				return nil, err
			}
			result.Paginated = true
			result.TotalCount = total
			result.Records = records
		}
	case http.MethodPost, http.MethodPut:
		result.ID = extractID(family, result.Body)
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// PerformPaginated fetches every page of a collection endpoint and returns
// the records in server order. A first response without the
// {totalCount, results} shape is a KindProtocol error, as is any page failure:
// a partial list is never returned.
func (c *Client) PerformPaginated(ctx context.Context, endpoint string, family Family) ([]json.RawMessage, error) {
	target, err := c.URL(endpoint)
	if err != nil {
		return nil, protocolError(http.MethodGet, endpoint, 0, nil, "%v", err)
	}

	ctx, span := c.tracing.StartSpan(ctx, "jamf.perform_paginated", trace.SpanKindInternal)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrJamfEndpoint, endpoint),
		attribute.String(telemetry.AttrJamfAPIFamily, family.String()),
	)

	resp, err := c.do(ctx, http.MethodGet, target, nil, family)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	first, ok := parsePage(resp.Body())
	if !ok {
		err := protocolError(http.MethodGet, target, resp.StatusCode(), resp.Body(), "response is not a paginated collection")
		recordError(span, err)
		return nil, err
	}

	records, _, err := c.paginate(ctx, target, family, resp.StatusCode(), first)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return records, nil
}

// do sends a single HTTP request. It never follows pagination.
func (c *Client) do(ctx context.Context, method, target string, body []byte, family Family) (*resty.Response, error) {
	if err := c.acquire(); err != nil {
		return nil, protocolError(method, target, 0, nil, "%v", err)
	}
	defer c.release()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, canceledError(method, target, err)
		}
	}

	// No token, no request.
	tok, err := c.tokens.CurrentToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracing.StartSpan(ctx, "jamf.request", trace.SpanKindClient)
	defer span.End()

	headers := injectTraceContext(ctx, map[string]string{
		HeaderAccept:      contentTypeJSON,
		HeaderContentType: family.ContentType(),
	})

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetAuthToken(tok.Value)
	if len(body) > 0 {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, target)
	duration := time.Since(start)

	if err != nil {
		c.metrics.observeRequest(method, family, 0, duration)
		jerr := transportError(ctx, method, target, err)
		recordError(span, jerr)
		c.log.WithFields(logrus.Fields{"method": method, "url": target}).Debugf("Request failed: %v", err)
		return nil, jerr
	}

	c.metrics.observeRequest(method, family, resp.StatusCode(), duration)
	recordHTTPAttributes(span, method, target, family, resp.StatusCode(), int64(len(body)), int64(len(resp.Body())), duration)
	c.log.WithFields(logrus.Fields{
		"method":   method,
		"url":      target,
		"status":   resp.StatusCode(),
		"duration": duration.String(),
	}).Debug("Jamf API request completed")

	if !isSuccess(resp.StatusCode()) {
		jerr := protocolError(method, target, resp.StatusCode(), resp.Body(), "unexpected status")
		recordError(span, jerr)
		return nil, jerr
	}

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// extractID pulls the identifier out of a create/update response. Classic
// answers <anything><id>N</id></anything>, Pro answers {"id": "N", ...}.
func extractID(family Family, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if family == Classic {
		var created struct {
			ID string `xml:"id"`
		}
		if err := xml.Unmarshal(body, &created); err != nil {
			return ""
		}
		return strings.TrimSpace(created.ID)
	}

	var created struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || len(created.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(created.ID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(created.ID, &n); err == nil {
		return n.String()
	}
	return ""
}

func (c *Client) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client is closed")
	}
	atomic.AddInt32(&c.activeReqs, 1)
	return nil
}

func (c *Client) release() {
	if atomic.AddInt32(&c.activeReqs, -1) == 0 {
		c.mu.Lock()
		if c.closed && c.closeChan != nil {
			close(c.closeChan)
			c.closeChan = nil
		}
		c.mu.Unlock()
	}
}

// Close rejects new requests, waits up to 30 seconds for in-flight ones and
// releases idle connections.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.CloseWithContext(ctx)
}

// CloseWithContext is Close with a caller-controlled wait.
func (c *Client) CloseWithContext(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("client already closed")
	}
	c.closed = true

	active := atomic.LoadInt32(&c.activeReqs)
	if active > 0 {
		c.closeChan = make(chan struct{})
		ch := c.closeChan
		c.mu.Unlock()

		select {
		case <-ch:
			c.log.Debug("All active requests completed during shutdown")
		case <-ctx.Done():
			c.log.Warnf("Context ended while waiting for %d active requests", active)
			return ctx.Err()
		}
	} else {
		c.mu.Unlock()
	}

	c.http.GetClient().CloseIdleConnections()
	c.tokens.Invalidate()
	return nil
}
