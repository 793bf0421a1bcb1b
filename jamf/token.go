package jamf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fjacquet/jamfpro/internal/telemetry"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	basicTokenPath = "api/v1/auth/token"
	oauthTokenPath = "api/oauth/token"

	defaultRefreshBuffer = 30 * time.Second
	minRefreshBuffer     = time.Second

	formContentType = "application/x-www-form-urlencoded;charset=UTF-8"
	tokenFlightKey  = "token"
)

type authFlow int

const (
	flowBasic authFlow = iota + 1
	flowClientCredentials
)

func (f authFlow) String() string {
	switch f {
	case flowBasic:
		return "basic"
	case flowClientCredentials:
		return "client_credentials"
	default:
		return "unknown"
	}
}

// Credentials carry either a username/password pair (Basic token exchange)
// or an API client id/secret pair (OAuth2 client credentials). Exactly one
// pair must be complete.
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// BasicCredentials returns credentials for the /api/v1/auth/token exchange.
func BasicCredentials(username, password string) Credentials {
	return Credentials{Username: username, Password: password}
}

// ClientCredentials returns credentials for the /api/oauth/token exchange.
func ClientCredentials(clientID, clientSecret string) Credentials {
	return Credentials{ClientID: clientID, ClientSecret: clientSecret}
}

func (c Credentials) flow() (authFlow, error) {
	basic := c.Username != "" || c.Password != ""
	oauth := c.ClientID != "" || c.ClientSecret != ""

	switch {
	case basic && oauth:
		return 0, errors.New("credentials: set either username/password or client id/secret, not both")
	case basic:
		if c.Username == "" || c.Password == "" {
			return 0, errors.New("credentials: username and password are both required")
		}
		return flowBasic, nil
	case oauth:
		if c.ClientID == "" || c.ClientSecret == "" {
			return 0, errors.New("credentials: client id and client secret are both required")
		}
		return flowClientCredentials, nil
	default:
		return 0, errors.New("credentials: no credentials supplied")
	}
}

// Token is a bearer token and the instant after which it must not be used.
// ExpiresAt already has the refresh buffer subtracted.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// String masks the token so it can be logged.
func (t Token) String() string {
	if len(t.Value) <= 8 {
		return "****"
	}
	return t.Value[:4] + "****" + t.Value[len(t.Value)-4:]
}

// TokenManager acquires and caches the bearer token of one Client.
//
// At most one token is cached. Concurrent callers that find it absent or
// expired share a single exchange.
type TokenManager struct {
	http    *resty.Client
	baseURL *url.URL
	creds   Credentials
	flow    authFlow
	buffer  time.Duration
	now     func() time.Time
	log     logrus.FieldLogger
	tracing *TracerWrapper
	metrics *clientMetrics

	mu    sync.RWMutex
	token *Token
	group singleflight.Group
}

func newTokenManager(httpClient *resty.Client, baseURL *url.URL, creds Credentials, flow authFlow, opts clientOptions, tracing *TracerWrapper, metrics *clientMetrics) *TokenManager {
	buffer := opts.refreshBuffer
	if buffer < minRefreshBuffer {
		buffer = minRefreshBuffer
	}
	return &TokenManager{
		http:    httpClient,
		baseURL: baseURL,
		creds:   creds,
		flow:    flow,
		buffer:  buffer,
		now:     opts.now,
		log:     opts.logger,
		tracing: tracing,
		metrics: metrics,
	}
}

// IsExpired reports whether a new exchange is needed: no token is cached or
// the current time has reached the cached token's expiry.
func (m *TokenManager) IsExpired() bool {
	_, ok := m.cached()
	return !ok
}

// Invalidate drops the cached token so the next call performs an exchange.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// CurrentToken returns the cached token while it is valid, otherwise performs
// one exchange and caches its result.
//
// The exchange itself is detached from ctx cancellation so that one caller
// giving up does not fail the others waiting on the same exchange; it stays
// bounded by the client timeout. Each caller still stops waiting when its own
// ctx is done.
//
// Returns a KindAuthentication error when the exchange fails and a
// KindCanceled error when ctx ends first.
func (m *TokenManager) CurrentToken(ctx context.Context) (Token, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	ch := m.group.DoChan(tokenFlightKey, func() (interface{}, error) {
		// A flight that finished between our check and DoChan already refreshed it.
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, canceledError(http.MethodPost, m.tokenURL(), ctx.Err())
	}
}

func (m *TokenManager) cached() (Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil || !m.now().Before(m.token.ExpiresAt) {
		return Token{}, false
	}
	return *m.token, true
}

func (m *TokenManager) refresh(ctx context.Context) (Token, error) {
	ctx, span := m.tracing.StartSpan(ctx, "jamf.token.exchange", trace.SpanKindClient)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrJamfAuthFlow, m.flow.String()))

	var (
		tok Token
		err error
	)
	switch m.flow {
	case flowClientCredentials:
		tok, err = m.exchangeClientCredentials(ctx)
	default:
		tok, err = m.exchangeBasic(ctx)
	}
	m.metrics.observeExchange(m.flow, err)

	m.mu.Lock()
	if err != nil {
		m.token = nil
	} else {
		m.token = &tok
	}
	m.mu.Unlock()

	if err != nil {
		recordError(span, err)
		status := StatusCode(err)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			m.log.Error(fmt.Sprintf(telemetry.ErrAuthenticationFailedTemplate, m.flow, m.tokenURL(), status))
		}
		m.log.WithFields(logrus.Fields{
			"flow":   m.flow.String(),
			"status": status,
		}).Errorf("Token exchange failed: %v", err)
		return Token{}, err
	}

	span.SetAttributes(attribute.String(telemetry.AttrJamfTokenExpiry, tok.ExpiresAt.UTC().Format(time.RFC3339)))
	span.SetStatus(codes.Ok, "")
	m.log.WithFields(logrus.Fields{
		"flow":    m.flow.String(),
		"token":   tok.String(),
		"expires": tok.ExpiresAt.UTC().Format(time.RFC3339),
	}).Debug("Obtained bearer token")
	return tok, nil
}

// basicTokenResponse is the body of POST /api/v1/auth/token.
type basicTokenResponse struct {
	Token     string `json:"token"`
	Expires   string `json:"expires"`
	ExpiresIn *int64 `json:"expires_in"`
}

func (m *TokenManager) exchangeBasic(ctx context.Context) (Token, error) {
	tokenURL := m.tokenURL()

	resp, err := m.http.R().
		SetContext(ctx).
		SetBasicAuth(m.creds.Username, m.creds.Password).
		SetHeaders(injectTraceContext(ctx, map[string]string{
			HeaderAccept:      contentTypeJSON,
			HeaderContentType: formContentType,
		})).
		Post(tokenURL)
	if err != nil {
		return Token{}, authError(tokenURL, 0, nil, errors.Wrap(err, "token request failed"), "basic token exchange")
	}
	if !isSuccess(resp.StatusCode()) {
		return Token{}, authError(tokenURL, resp.StatusCode(), resp.Body(), nil, "basic token exchange rejected")
	}

	var body basicTokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Token{}, authError(tokenURL, resp.StatusCode(), resp.Body(), errors.Wrap(err, "decode token response"), "malformed token response")
	}
	if body.Token == "" {
		return Token{}, authError(tokenURL, resp.StatusCode(), resp.Body(), nil, "token response has no token")
	}

	var expiry time.Time
	switch {
	case body.Expires != "":
		expiry, err = time.Parse(time.RFC3339Nano, body.Expires)
		if err != nil {
			return Token{}, authError(tokenURL, resp.StatusCode(), resp.Body(), errors.Wrap(err, "parse expires"), "malformed token expiry")
		}
	case body.ExpiresIn != nil:
		expiry = m.now().Add(time.Duration(*body.ExpiresIn) * time.Second)
	default:
		return Token{}, authError(tokenURL, resp.StatusCode(), resp.Body(), nil, "token response has no expiry")
	}

	return m.newToken(body.Token, expiry), nil
}

func (m *TokenManager) exchangeClientCredentials(ctx context.Context) (Token, error) {
	tokenURL := m.tokenURL()

	cfg := clientcredentials.Config{
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.http.GetClient())

	t, err := cfg.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return Token{}, authError(tokenURL, rerr.Response.StatusCode, rerr.Body, err, "client credentials exchange rejected")
		}
		return Token{}, authError(tokenURL, 0, nil, err, "client credentials exchange")
	}

	var expiry time.Time
	switch {
	case t.ExpiresIn > 0:
		expiry = m.now().Add(time.Duration(t.ExpiresIn) * time.Second)
	case !t.Expiry.IsZero():
		expiry = t.Expiry
	default:
		return Token{}, authError(tokenURL, http.StatusOK, nil, nil, "token response has no expires_in")
	}

	return m.newToken(t.AccessToken, expiry), nil
}

// newToken applies the refresh buffer to expiry. The buffer never takes more
// than half of the token's remaining lifetime, so a short-lived token is still
// reused for the first half of its validity.
func (m *TokenManager) newToken(value string, expiry time.Time) Token {
	margin := m.buffer
	if half := expiry.Sub(m.now()) / 2; margin > half {
		margin = max(half, 0)
	}
	return Token{Value: value, ExpiresAt: expiry.Add(-margin)}
}

func (m *TokenManager) tokenURL() string {
	path := basicTokenPath
	if m.flow == flowClientCredentials {
		path = oauthTokenPath
	}
	u, _ := joinURL(m.baseURL, path)
	return u
}
