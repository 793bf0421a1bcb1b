package jamf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjacquet/jamfpro/internal/telemetry"
)

// QueryParamPage is the 0-indexed page cursor of Pro API collections.
const QueryParamPage = "page"

// collectionPage holds the raw members of a {totalCount, results} body.
type collectionPage struct {
	rawTotal   json.RawMessage
	rawResults json.RawMessage
}

// parsePage reports whether body is a JSON object carrying "totalCount".
// Anything else, including non-JSON bodies, is a plain response.
func parsePage(body []byte) (collectionPage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return collectionPage{}, false
	}
	total, ok := fields["totalCount"]
	if !ok || string(total) == "null" {
		return collectionPage{}, false
	}
	return collectionPage{rawTotal: total, rawResults: fields["results"]}, true
}

func (p collectionPage) total() (int, error) {
	var total int
	if err := json.Unmarshal(p.rawTotal, &total); err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, strconv.ErrRange
	}
	return total, nil
}

func decodeResults(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var results []json.RawMessage
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

// pageResults extracts "results" from a follow-up page.
func pageResults(body []byte) ([]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, false
	}
	return decodeResults(fields["results"])
}

// withPage returns target with the page cursor set, keeping other query parameters.
func withPage(target string, cursor int) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(QueryParamPage, strconv.Itoa(cursor))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// appendUpTo appends results to records without letting records grow past limit.
func appendUpTo(records, results []json.RawMessage, limit int) []json.RawMessage {
	room := limit - len(records)
	if room <= 0 {
		return records
	}
	if len(results) > room {
		results = results[:room]
	}
	return append(records, results...)
}

// paginate accumulates the first page and then requests page=1, page=2, ...
// one after the other until totalCount records are held.
//
// A page with no results while records are still missing aborts the loop
// with a protocol error, so a server that under-delivers cannot spin it
// forever. Any failing page fails the whole call.
func (c *Client) paginate(ctx context.Context, target string, family Family, status int, first collectionPage) ([]json.RawMessage, int, error) {
	ctx, span := c.tracing.StartSpan(ctx, "jamf.paginate", trace.SpanKindInternal)
	defer span.End()

	total, err := first.total()
	if err != nil {
		perr := protocolError(http.MethodGet, target, status, first.rawTotal, "invalid totalCount: %v", err)
		recordError(span, perr)
		return nil, 0, perr
	}
	results, ok := decodeResults(first.rawResults)
	if !ok && total == 0 && len(first.rawResults) == 0 {
		// {"totalCount":0} alone is an empty collection.
		results, ok = nil, true
	}
	if !ok {
		perr := protocolError(http.MethodGet, target, status, first.rawResults, "paginated response has no results array")
		recordError(span, perr)
		return nil, 0, perr
	}

	records := appendUpTo(make([]json.RawMessage, 0, len(results)), results, total)
	pages := 1

	for cursor := 1; len(records) < total; cursor++ {
		if err := ctx.Err(); err != nil {
			cerr := canceledError(http.MethodGet, target, err)
			recordError(span, cerr)
			return nil, 0, cerr
		}

		pageURL, err := withPage(target, cursor)
		if err != nil {
			perr := protocolError(http.MethodGet, target, 0, nil, "%v", err)
			recordError(span, perr)
			return nil, 0, perr
		}

		span.AddEvent("page", trace.WithAttributes(attribute.Int(telemetry.AttrJamfPageNumber, cursor)))
		resp, err := c.do(ctx, http.MethodGet, pageURL, nil, family)
		if err != nil {
			recordError(span, err)
			return nil, 0, err
		}
		pages++
		c.metrics.observePage()

		next, ok := pageResults(resp.Body())
		if !ok {
			perr := protocolError(http.MethodGet, pageURL, resp.StatusCode(), resp.Body(), "page %d has no results array", cursor)
			recordError(span, perr)
			return nil, 0, perr
		}
		if len(next) == 0 {
			perr := protocolError(http.MethodGet, pageURL, resp.StatusCode(), nil,
				"page %d returned no results with %d of %d records fetched", cursor, len(records), total)
			recordError(span, perr)
			return nil, 0, perr
		}
		records = appendUpTo(records, next, total)
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrJamfTotalCount, total),
		attribute.Int(telemetry.AttrJamfPagesFetched, pages),
		attribute.Int(telemetry.AttrJamfRecords, len(records)),
	)
	span.SetStatus(codes.Ok, "")

	c.log.WithFields(logrus.Fields{
		"url":     target,
		"total":   total,
		"pages":   pages,
		"records": len(records),
	}).Debug("Pagination complete")

	return records, total, nil
}
