package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

// MockServerBuilder provides a fluent interface for creating a mock Jamf Pro
// server. Handlers are keyed by request path; Hits reports how many requests
// each path received once the server runs.
type MockServerBuilder struct {
	handlers map[string]http.HandlerFunc
	useTLS   bool
	bearer   string

	mu   sync.Mutex
	hits map[string]int
}

// MockServer is a running mock built by MockServerBuilder.
type MockServer struct {
	*httptest.Server
	builder *MockServerBuilder
}

// NewMockServer creates a new MockServerBuilder.
func NewMockServer() *MockServerBuilder {
	return &MockServerBuilder{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
}

// WithTLS enables TLS for the mock server.
func (b *MockServerBuilder) WithTLS() *MockServerBuilder {
	b.useTLS = true
	return b
}

// RequireBearer makes every non-token endpoint answer 401 unless the request
// carries "Authorization: Bearer <token>".
func (b *MockServerBuilder) RequireBearer(token string) *MockServerBuilder {
	b.bearer = token
	return b
}

// WithBasicToken serves POST /api/v1/auth/token. Requests with the right
// Basic credentials get token with an "expires" lifetime from now; others get 401.
func (b *MockServerBuilder) WithBasicToken(username, password, token string, lifetime time.Duration) *MockServerBuilder {
	b.handlers[TestPathBasicToken] = func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if r.Method != http.MethodPost || !ok || user != username || pass != password {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSONResponse(w, map[string]interface{}{"httpStatus": 401, "errors": []interface{}{}})
			return
		}
		writeJSONResponse(w, map[string]string{
			"token":   token,
			"expires": time.Now().Add(lifetime).UTC().Format(time.RFC3339Nano),
		})
	}
	return b
}

// WithOAuthToken serves POST /api/oauth/token for the client credentials grant.
func (b *MockServerBuilder) WithOAuthToken(clientID, clientSecret, token string, lifetime time.Duration) *MockServerBuilder {
	b.handlers[TestPathOAuthToken] = func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Method != http.MethodPost ||
			r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("client_id") != clientID ||
			r.PostForm.Get("client_secret") != clientSecret {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSONResponse(w, map[string]string{"error": "invalid_client"})
			return
		}
		writeJSONResponse(w, map[string]interface{}{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   int(lifetime.Seconds()),
		})
	}
	return b
}

// WithPaginatedEndpoint serves a Pro collection of total records split into
// pages of pageSize. Record i is {"id": "<i>"}; the page query parameter
// selects the page, 0 when absent.
func (b *MockServerBuilder) WithPaginatedEndpoint(path string, total, pageSize int) *MockServerBuilder {
	b.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		results := make([]map[string]string, 0, pageSize)
		for i := page * pageSize; i < total && i < (page+1)*pageSize; i++ {
			results = append(results, map[string]string{"id": strconv.Itoa(i + 1)})
		}
		writeJSONResponse(w, map[string]interface{}{
			"totalCount": total,
			"results":    results,
		})
	}
	return b
}

// WithJSONEndpoint serves response, JSON-encoded, for any method on path.
func (b *MockServerBuilder) WithJSONEndpoint(path string, response interface{}) *MockServerBuilder {
	b.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, response)
	}
	return b
}

// WithClassicCreate answers POSTs on path with 201 and <wrapper><id>id</id></wrapper>.
func (b *MockServerBuilder) WithClassicCreate(path, wrapper string, id int) *MockServerBuilder {
	b.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set(ContentTypeHeader, ContentTypeXML)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?><%s><id>%d</id></%s>", wrapper, id, wrapper)
	}
	return b
}

// WithCustomEndpoint adds a custom handler for the specified path.
func (b *MockServerBuilder) WithCustomEndpoint(path string, handler http.HandlerFunc) *MockServerBuilder {
	b.handlers[path] = handler
	return b
}

// WithErrorResponse adds a handler that returns the specified HTTP status code.
func (b *MockServerBuilder) WithErrorResponse(path string, statusCode int) *MockServerBuilder {
	b.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		if statusCode >= 400 {
			writeJSONResponse(w, map[string]interface{}{
				"httpStatus": statusCode,
				"errors":     []map[string]string{{"description": http.StatusText(statusCode)}},
			})
		}
	}
	return b
}

// Build creates and starts the configured HTTP test server.
func (b *MockServerBuilder) Build() *MockServer {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		b.mu.Unlock()

		isToken := r.URL.Path == TestPathBasicToken || r.URL.Path == TestPathOAuthToken
		if b.bearer != "" && !isToken && r.Header.Get(AuthorizationHeader) != "Bearer "+b.bearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if handler, ok := b.handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		// Default: 404 Not Found
		w.WriteHeader(http.StatusNotFound)
		writeJSONResponse(w, map[string]interface{}{"httpStatus": 404, "errors": []interface{}{}})
	})

	srv := &MockServer{builder: b}
	if b.useTLS {
		srv.Server = httptest.NewTLSServer(handler)
	} else {
		srv.Server = httptest.NewServer(handler)
	}
	return srv
}

// Hits returns how many requests path has received.
func (s *MockServer) Hits(path string) int {
	s.builder.mu.Lock()
	defer s.builder.mu.Unlock()
	return s.builder.hits[path]
}

// LoadTestData loads test data from a file.
// It uses t.Helper() to report errors at the caller's location.
func LoadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("Failed to read test data file %s: %v", filename, err)
	}
	return data
}

// WriteTempFile writes content to name inside a fresh temporary directory
// and returns the full path.
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := t.TempDir() + string(os.PathSeparator) + name
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// writeJSONResponse writes a JSON response to the ResponseWriter.
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
