package jamf

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	proComputersInventoryPath = "api/v1/computers-inventory"
	proMobileDevicesPath      = "api/v2/mobile-devices"
)

// DecodeRecords unmarshals every raw record into T.
// A record that does not fit T is a KindProtocol error.
func DecodeRecords[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, &Error{Kind: KindProtocol, Message: "decode record " + strconv.Itoa(i), Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// ProComputers returns the full computer inventory, every page of it.
func (c *Client) ProComputers(ctx context.Context) ([]Record, error) {
	return c.proList(ctx, proComputersInventoryPath)
}

// ProMobileDevices returns every mobile device, every page of it.
func (c *Client) ProMobileDevices(ctx context.Context) ([]Record, error) {
	return c.proList(ctx, proMobileDevicesPath)
}

// ProMobileDevice fetches one mobile device; withDetails selects the /detail
// view with the full inventory.
func (c *Client) ProMobileDevice(ctx context.Context, id int, withDetails bool) (Record, error) {
	endpoint := proMobileDevicesPath + "/" + strconv.Itoa(id)
	if withDetails {
		endpoint += "/detail"
	}

	res, err := c.Perform(ctx, endpoint, http.MethodGet, nil, Pro)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(res.Body, &rec); err != nil {
		return nil, nonJSONError(endpoint, res, err)
	}
	return rec, nil
}

// ProCreate JSON-encodes payload, POSTs it and returns the id of the created resource.
func (c *Client) ProCreate(ctx context.Context, endpoint string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: KindEncoding, Message: "encode payload", Err: err}
	}
	return c.create(ctx, endpoint, body, Pro)
}

// PostData creates a resource on either API and returns its id. For the
// Classic API payload must already be XML ([]byte or string, see
// EncodeClassRecord); for the Pro API it is JSON-encoded.
func (c *Client) PostData(ctx context.Context, endpoint string, payload interface{}, classic bool) (string, error) {
	if !classic {
		return c.ProCreate(ctx, endpoint, payload)
	}

	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	default:
		return "", encodingError("classic payload must be pre-encoded XML, got %T", payload)
	}
	if len(body) == 0 {
		return "", encodingError("classic payload is empty")
	}
	return c.create(ctx, endpoint, body, Classic)
}

func (c *Client) proList(ctx context.Context, endpoint string) ([]Record, error) {
	raw, err := c.PerformPaginated(ctx, endpoint, Pro)
	if err != nil {
		return nil, err
	}
	return DecodeRecords[Record](raw)
}
