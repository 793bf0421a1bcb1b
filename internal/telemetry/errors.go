package telemetry

// Error message templates for failures that need operator guidance.
// Each template carries the likely causes and what to check first.
//
// Usage:
//
//	logging.LogError(fmt.Sprintf(telemetry.ErrAuthenticationFailedTemplate,
//	    flow, tokenURL, status))

const (
	// ErrAuthenticationFailedTemplate is logged when the token exchange is rejected by the Jamf Pro server
	ErrAuthenticationFailedTemplate = `Jamf Pro rejected the %s token exchange.

This usually indicates:
1. Wrong credentials (check 'username'/'password' or 'clientId'/'clientSecret' in config.yaml)
2. The API client or user lacks the privileges for the requested resources
3. The API role was disabled on the Jamf Pro server

Token URL: %s
Status: %d`

	// ErrNonJSONResponseTemplate is logged when a Pro API endpoint answers with something other than JSON
	ErrNonJSONResponseTemplate = `Jamf Pro server returned non-JSON response (Content-Type: %s).

This usually indicates:
1. Wrong server URL (check 'url' in config.yaml, include the /jss context if any)
2. A proxy or SSO page intercepting the request
3. A Classic API path queried as a Pro API endpoint

Request URL: %s
Response preview: %s`
)
