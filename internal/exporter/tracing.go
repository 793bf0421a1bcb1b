package exporter

import (
	"context"
	"time"

	"github.com/fjacquet/jamfpro/internal/telemetry"
	"github.com/fjacquet/jamfpro/jamf"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	scrapeStatusSuccess = "success"
	scrapeStatusPartial = "partial_failure"
	scrapeStatusFailure = "failure"
)

func (c *InventoryCollector) startScrapeSpan(ctx context.Context) (context.Context, trace.Span) {
	return c.tracing.StartSpan(ctx, "prometheus.scrape", trace.SpanKindServer)
}

func recordFetchError(span trace.Span, event string, err error) {
	span.AddEvent(event, trace.WithAttributes(
		attribute.String(telemetry.AttrError, err.Error()),
		attribute.String(telemetry.AttrErrorKind, jamf.KindOf(err).String()),
	))
}

func finishScrapeSpan(span trace.Span, start time.Time, snap snapshot) {
	status := snap.status()
	switch status {
	case scrapeStatusSuccess:
		span.SetStatus(codes.Ok, "")
	case scrapeStatusPartial:
		span.SetStatus(codes.Error, "Partial failure during inventory collection")
	default:
		span.SetStatus(codes.Error, "Inventory collection failed")
	}
	span.SetAttributes(
		attribute.Float64(telemetry.AttrScrapeDurationMS, float64(time.Since(start).Milliseconds())),
		attribute.Int(telemetry.AttrScrapeComputers, snap.computers),
		attribute.Int(telemetry.AttrScrapeMobileDevices, snap.mobileTotal()),
		attribute.String(telemetry.AttrScrapeStatus, status),
	)
}
