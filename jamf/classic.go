package jamf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjacquet/jamfpro/internal/telemetry"
)

// Classic API resource paths.
const (
	classicComputersPath     = "JSSResource/computers"
	classicMobileDevicesPath = "JSSResource/mobiledevices"
	classicClassesPath       = "JSSResource/classes"
)

// Record is one decoded API object. Field names and nesting are whatever
// the server returned.
type Record map[string]interface{}

// ClassicComputer fetches JSSResource/computers/id/{id}.
// A missing computer matches ErrNotFound.
func (c *Client) ClassicComputer(ctx context.Context, id int) (Record, error) {
	var rec Record
	err := c.getClassic(ctx, classicComputersPath+"/id/"+strconv.Itoa(id), "computer", &rec)
	return rec, err
}

// ClassicComputers lists every computer in the short Classic form.
func (c *Client) ClassicComputers(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := c.getClassic(ctx, classicComputersPath, "computers", &recs)
	return recs, err
}

// ClassicMobileDevice fetches JSSResource/mobiledevices/id/{id}.
func (c *Client) ClassicMobileDevice(ctx context.Context, id int) (Record, error) {
	var rec Record
	err := c.getClassic(ctx, classicMobileDevicesPath+"/id/"+strconv.Itoa(id), "mobile_device", &rec)
	return rec, err
}

// ClassicMobileDevices lists every mobile device.
func (c *Client) ClassicMobileDevices(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := c.getClassic(ctx, classicMobileDevicesPath, "mobile_devices", &recs)
	return recs, err
}

// ClassicSearchMobileDevices returns the mobile devices matching term (name,
// serial number, MAC address and so on). term is path-escaped.
func (c *Client) ClassicSearchMobileDevices(ctx context.Context, term string) ([]Record, error) {
	var recs []Record
	err := c.getClassic(ctx, classicMobileDevicesPath+"/match/"+url.PathEscape(term), "mobile_devices", &recs)
	return recs, err
}

// ClassicCreateClass encodes record and creates it, returning the new class id.
func (c *Client) ClassicCreateClass(ctx context.Context, record ClassRecord) (string, error) {
	body, err := EncodeClassRecord(record)
	if err != nil {
		return "", err
	}
	return c.create(ctx, classicClassesPath+"/id/0", body, Classic)
}

// ClassicDeleteClass deletes the class with the given id.
func (c *Client) ClassicDeleteClass(ctx context.Context, id int) error {
	_, err := c.Perform(ctx, classicClassesPath+"/id/"+strconv.Itoa(id), http.MethodDelete, nil, Classic)
	return err
}

// getClassic GETs a Classic endpoint and decodes the member named key of the
// JSON envelope into out.
func (c *Client) getClassic(ctx context.Context, endpoint, key string, out interface{}) error {
	res, err := c.Perform(ctx, endpoint, http.MethodGet, nil, Classic)
	if err != nil {
		return err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(res.Body, &envelope); err != nil {
		return nonJSONError(endpoint, res, err)
	}
	raw, ok := envelope[key]
	if !ok {
		return protocolError(http.MethodGet, endpoint, res.StatusCode, res.Body, "response has no %q member", key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindProtocol, Method: http.MethodGet, URL: endpoint, StatusCode: res.StatusCode,
			Message: "decode " + key, Err: err}
	}
	return nil
}

// create POSTs body and requires the answer to carry the new resource id.
func (c *Client) create(ctx context.Context, endpoint string, body []byte, family Family) (string, error) {
	res, err := c.Perform(ctx, endpoint, http.MethodPost, body, family)
	if err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", protocolError(http.MethodPost, endpoint, res.StatusCode, res.Body, "response carries no id")
	}
	return res.ID, nil
}

// nonJSONError describes a 2xx answer that could not be read as JSON, which
// is usually a login page or a wrong base URL rather than an API response.
func nonJSONError(endpoint string, res *Result, cause error) *Error {
	return &Error{
		Kind:       KindProtocol,
		Method:     http.MethodGet,
		URL:        endpoint,
		StatusCode: res.StatusCode,
		Message:    fmt.Sprintf(telemetry.ErrNonJSONResponseTemplate, res.Header.Get(HeaderContentType), endpoint, preview(res.Body)),
		Err:        cause,
	}
}
