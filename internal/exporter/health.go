package exporter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fjacquet/jamfpro/jamf"
)

const healthCheckTimeout = 5 * time.Second

// TestConnectivity checks that the Jamf Pro server answers an authenticated
// request. The version endpoint is used: it is small and read-only.
// A context without deadline gets a 5 second one.
func (c *InventoryCollector) TestConnectivity(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
	}

	if _, err := c.currentClient().Perform(ctx, versionEndpoint, http.MethodGet, nil, jamf.Pro); err != nil {
		return fmt.Errorf("jamf pro connectivity test failed: %w", err)
	}
	return nil
}

// IsHealthy reports whether any scrape has reached the server so far.
// No request is made.
func (c *InventoryCollector) IsHealthy() bool {
	c.scrapeMu.RLock()
	defer c.scrapeMu.RUnlock()
	return !c.lastSuccessTime.IsZero()
}

// LastSuccess returns when a scrape last fetched at least one inventory.
func (c *InventoryCollector) LastSuccess() time.Time {
	c.scrapeMu.RLock()
	defer c.scrapeMu.RUnlock()
	return c.lastSuccessTime
}
