package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fjacquet/jamfpro/jamf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestConnectivitySuccess(t *testing.T) {
	srv := inventoryServer(0, 0).Build()
	defer srv.Close()

	c := NewInventoryCollector(newJamfClient(t, srv))
	defer func() { _ = c.Close() }()

	require.NoError(t, c.TestConnectivity(context.Background()))
	assert.Equal(t, 1, srv.Hits(testPathVersion))
	assert.False(t, c.IsHealthy(), "a connectivity test is not a scrape")
}

func TestTestConnectivityServerError(t *testing.T) {
	srv := inventoryServer(0, 0).
		WithErrorResponse(testPathVersion, http.StatusServiceUnavailable).
		Build()
	defer srv.Close()

	c := NewInventoryCollector(newJamfClient(t, srv))
	defer func() { _ = c.Close() }()

	err := c.TestConnectivity(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jamf pro connectivity test failed")
	assert.ErrorIs(t, err, jamf.ErrProtocol)
	assert.Equal(t, http.StatusServiceUnavailable, jamf.StatusCode(err))
}

func TestTestConnectivityBadCredentials(t *testing.T) {
	srv := inventoryServer(0, 0).Build()
	defer srv.Close()

	client, err := jamf.New(srv.URL, jamf.BasicCredentials("someone", "else"))
	require.NoError(t, err)
	c := NewInventoryCollector(client)
	defer func() { _ = c.Close() }()

	err = c.TestConnectivity(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, jamf.ErrAuthentication)
	assert.Zero(t, srv.Hits(testPathVersion))
}

func TestTestConnectivityTimeout(t *testing.T) {
	srv := inventoryServer(0, 0).
		WithCustomEndpoint(testPathVersion, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}).
		Build()
	defer srv.Close()

	c := NewInventoryCollector(newJamfClient(t, srv))
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.TestConnectivity(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, jamf.ErrCanceled)
}

func TestTestConnectivityDefaultDeadline(t *testing.T) {
	var deadlineSet bool
	stub := &deadlineClient{check: func(ctx context.Context) {
		_, deadlineSet = ctx.Deadline()
	}}
	c := NewInventoryCollector(stub)

	require.NoError(t, c.TestConnectivity(context.Background()))
	assert.True(t, deadlineSet, "a deadline is added when the caller gave none")
}

type deadlineClient struct {
	stubClient
	check func(context.Context)
}

func (d *deadlineClient) Perform(ctx context.Context, endpoint, method string, body []byte, family jamf.Family) (*jamf.Result, error) {
	d.check(ctx)
	return d.stubClient.Perform(ctx, endpoint, method, body, family)
}

func TestIsHealthyAfterScrape(t *testing.T) {
	stub := &stubClient{
		records: map[string][]json.RawMessage{computersEndpoint: rawRecords(`{"id":"1"}`)},
		errs:    map[string]error{mobileDevicesEndpoint: errors.New("boom")},
	}
	c := NewInventoryCollector(stub)
	assert.False(t, c.IsHealthy())

	before := time.Now()
	collectAll(c)

	assert.True(t, c.IsHealthy(), "a partial scrape still reached the server")
	assert.False(t, c.LastSuccess().Before(before))
}
