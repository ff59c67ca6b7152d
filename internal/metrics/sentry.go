package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics records requests and generation runs as Sentry spans
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // spans are dropped by the SDK when Sentry is not initialized
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordGeneration records one generation run. cached marks tracks served
// from the cache or the run store.
func (m *SentryMetrics) RecordGeneration(ctx context.Context, run Generation) {
	if !m.enabled {
		return
	}

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("groove.song", run.Song)
		transaction.SetTag("groove.seed", fmt.Sprintf("%d", run.Seed))
	}

	span := sentry.StartSpan(ctx, "groove.generate")
	defer span.Finish()

	span.SetTag("song", run.Song)
	span.SetTag("cached", fmt.Sprintf("%t", run.Cached))
	span.SetTag("success", fmt.Sprintf("%t", run.Success))

	span.SetData("seed", run.Seed)
	span.SetData("bars", run.Bars)
	span.SetData("onsets", run.Onsets)
	span.SetData("tie_breaks", run.TieBreaks)
	span.SetData("duration_ms", run.Duration.Milliseconds())

	if run.Success {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("Generate %s seed %d", run.Song, run.Seed)
}
