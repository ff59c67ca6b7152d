// Package metrics records request and generation metrics to Sentry,
// Prometheus and, in production, CloudWatch.
package metrics

import (
	"context"
	"time"
)

// Generation describes one generation run for metrics
type Generation struct {
	Song      string
	Seed      uint64
	Bars      int
	Onsets    int
	TieBreaks int
	Duration  time.Duration
	Cached    bool
	Success   bool
}

// Recorder fans metrics out to every configured backend
type Recorder struct {
	sentry     *SentryMetrics
	prometheus *PrometheusMetrics
	cloudwatch *Client
}

// NewRecorder creates a recorder. cloudwatch may be nil.
func NewRecorder(cloudwatch *Client) *Recorder {
	return &Recorder{
		sentry:     NewSentryMetrics(),
		prometheus: NewPrometheusMetrics(),
		cloudwatch: cloudwatch,
	}
}

// RecordAPIRequest records a finished HTTP request
func (r *Recorder) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	r.sentry.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	r.prometheus.RecordAPIRequest(endpoint, statusCode, duration)
	if r.cloudwatch != nil {
		r.cloudwatch.RecordAPIRequest(endpoint, statusCode, duration)
	}
}

// RecordGeneration records a generation run
func (r *Recorder) RecordGeneration(ctx context.Context, run Generation) {
	r.sentry.RecordGeneration(ctx, run)
	r.prometheus.RecordGeneration(run)
	if r.cloudwatch != nil {
		r.cloudwatch.RecordGeneration(run)
	}
}
