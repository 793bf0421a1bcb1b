// Package testutil provides shared testing utilities and constants for the
// Jamf Pro client, CLI and exporter tests.
//
// # Key Components
//
// Constants: shared test values (credentials, tokens, endpoint paths) defined here.
//
// MockServerBuilder: fluent builder for an httptest server that speaks enough of
// the Jamf Pro API to drive the client: both token endpoints, paginated Pro
// collections, Classic resources, and arbitrary custom handlers.
//
// # Usage Examples
//
//	mock := testutil.NewMockServer().
//	    WithBasicToken(testutil.TestUsername, testutil.TestPassword, testutil.TestToken, time.Hour).
//	    WithPaginatedEndpoint(testutil.TestPathMobileDevices, 25, 20).
//	    Build()
//	defer mock.Close()
//
//	require.Equal(t, 2, mock.Hits(testutil.TestPathMobileDevices))
package testutil

// HTTP headers
const (
	ContentTypeHeader   = "Content-Type"
	AcceptHeader        = "Accept"
	AuthorizationHeader = "Authorization"
)

// Content types
const (
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Credentials and tokens
const (
	TestUsername     = "api-user"
	TestPassword     = "api-password"
	TestClientID     = "client-id"
	TestClientSecret = "client-secret"
	TestToken        = "eyJhbGciOiJIUzI1NiJ9.test-token"
)

// Jamf endpoints, as request paths on the mock server
const (
	TestPathBasicToken          = "/api/v1/auth/token"
	TestPathOAuthToken          = "/api/oauth/token"
	TestPathComputersInventory  = "/api/v1/computers-inventory"
	TestPathMobileDevices       = "/api/v2/mobile-devices"
	TestPathClassicComputers    = "/JSSResource/computers"
	TestPathClassicMobileDevice = "/JSSResource/mobiledevices"
	TestPathClassicClasses      = "/JSSResource/classes/id/0"
	TestPathMetrics             = "/metrics"
	TestPathHealth              = "/health"
)

// Test server names and identifiers
const (
	TestServerName        = "test-server"
	TestJamfURL           = "https://jamf.example.com"
	TestOTELEndpoint      = "localhost:4317"
	TestServiceName       = "jamfpro-test"
	TestServiceVersion    = "1.0.0-test"
	TestInvalidServerPort = "invalid server port"
	TestLogName           = "test.log"
	TestPort              = "2112"
)
