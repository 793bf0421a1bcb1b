// Package exporter exposes Jamf Pro inventory counts as Prometheus metrics.
package exporter

import (
	"context"
	"encoding/json"

	"github.com/fjacquet/jamfpro/jamf"
)

// InventoryClient is the part of *jamf.Client the collector uses.
// Tests substitute a stub.
type InventoryClient interface {
	// Perform sends one request and returns the decoded result.
	Perform(ctx context.Context, endpoint, method string, body []byte, family jamf.Family) (*jamf.Result, error)

	// PerformPaginated fetches every page of a Pro API collection.
	PerformPaginated(ctx context.Context, endpoint string, family jamf.Family) ([]json.RawMessage, error)

	// Close releases the client's connections.
	Close() error
}

var _ InventoryClient = (*jamf.Client)(nil)
