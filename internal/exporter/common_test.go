package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjacquet/jamfpro/internal/testutil"
	"github.com/fjacquet/jamfpro/jamf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testPathVersion = "/api/v1/jamf-pro-version"
	testVersion     = "11.10.2-t1727184934"
)

// newJamfClient builds a real client against srv using the Basic flow.
func newJamfClient(t *testing.T, srv *testutil.MockServer) *jamf.Client {
	t.Helper()
	client, err := jamf.New(srv.URL, jamf.BasicCredentials(testutil.TestUsername, testutil.TestPassword),
		jamf.WithTimeout(5*time.Second))
	require.NoError(t, err)
	return client
}

// inventoryServer serves a token endpoint, computers, mobile devices and the version.
func inventoryServer(computers, mobiles int) *testutil.MockServerBuilder {
	return testutil.NewMockServer().
		WithBasicToken(testutil.TestUsername, testutil.TestPassword, testutil.TestToken, time.Hour).
		RequireBearer(testutil.TestToken).
		WithPaginatedEndpoint(testutil.TestPathComputersInventory, computers, 10).
		WithPaginatedEndpoint(testutil.TestPathMobileDevices, mobiles, 10).
		WithJSONEndpoint(testPathVersion, map[string]string{"version": testVersion})
}

// stubClient is an InventoryClient with canned answers.
type stubClient struct {
	records map[string][]json.RawMessage
	errs    map[string]error
	version string
	closed  atomic.Int32
}

func (s *stubClient) Perform(_ context.Context, endpoint, _ string, _ []byte, _ jamf.Family) (*jamf.Result, error) {
	if err := s.errs[endpoint]; err != nil {
		return nil, err
	}
	body, _ := json.Marshal(map[string]string{"version": s.version})
	return &jamf.Result{StatusCode: http.StatusOK, Body: body}, nil
}

func (s *stubClient) PerformPaginated(ctx context.Context, endpoint string, _ jamf.Family) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.errs[endpoint]; err != nil {
		return nil, err
	}
	return s.records[endpoint], nil
}

func (s *stubClient) Close() error {
	s.closed.Add(1)
	return nil
}

func rawRecords(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

// collectAll drains one Collect call.
func collectAll(c *InventoryCollector) []prometheus.Metric {
	ch := make(chan prometheus.Metric, 32)
	c.Collect(ch)
	close(ch)
	var out []prometheus.Metric
	for m := range ch {
		out = append(out, m)
	}
	return out
}
