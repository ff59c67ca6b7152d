package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groove_api_requests_total",
		Help: "Total API requests by endpoint and status code",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groove_api_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"endpoint"})

	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groove_generations_total",
		Help: "Total generation runs by outcome",
	}, []string{"result", "cached"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groove_generation_duration_seconds",
		Help:    "Generation run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	generationOnsets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groove_generation_onsets",
		Help:    "Onsets produced per generation run",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	tieBreaksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groove_tie_breaks_total",
		Help: "Seeded tie-breaks between equally scored candidates",
	})
)

// PrometheusMetrics records to the default Prometheus registry
type PrometheusMetrics struct{}

// NewPrometheusMetrics returns the Prometheus recorder
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// RecordAPIRequest records a finished HTTP request
func (PrometheusMetrics) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	apiRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordGeneration records a generation run. Cached runs only count.
func (PrometheusMetrics) RecordGeneration(run Generation) {
	result := "success"
	if !run.Success {
		result = "error"
	}
	generationsTotal.WithLabelValues(result, strconv.FormatBool(run.Cached)).Inc()
	if !run.Success || run.Cached {
		return
	}
	generationDuration.Observe(run.Duration.Seconds())
	generationOnsets.Observe(float64(run.Onsets))
	tieBreaksTotal.Add(float64(run.TieBreaks))
}
