package telemetry

// HTTP semantic convention attributes
const (
	AttrHTTPMethod                = "http.method"
	AttrHTTPURL                   = "http.url"
	AttrHTTPStatusCode            = "http.status_code"
	AttrHTTPRequestContentLength  = "http.request_content_length"
	AttrHTTPResponseContentLength = "http.response_content_length"
	AttrHTTPDurationMS            = "http.duration_ms"
)

// Jamf-specific attributes
const (
	AttrJamfAPIFamily    = "jamf.api_family"
	AttrJamfEndpoint     = "jamf.endpoint"
	AttrJamfAuthFlow     = "jamf.auth_flow"
	AttrJamfTokenExpiry  = "jamf.token_expiry"
	AttrJamfTotalCount   = "jamf.total_count"
	AttrJamfPageNumber   = "jamf.page_number"
	AttrJamfPagesFetched = "jamf.pages_fetched"
	AttrJamfRecords      = "jamf.records"
)

// Scrape cycle attributes
const (
	AttrScrapeDurationMS    = "scrape.duration_ms"
	AttrScrapeComputers     = "scrape.computers"
	AttrScrapeMobileDevices = "scrape.mobile_devices"
	AttrScrapeStatus        = "scrape.status"
)

// Error attributes
const (
	AttrError     = "error"
	AttrErrorKind = "error.kind"
)
