package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	EscalationsTotal *prometheus.CounterVec
	RecordsTotal     *prometheus.CounterVec
	QualityScore     prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of fetch attempts after the first.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	escalations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_mobile_escalations_total",
			Help: "Fetches redirected to the mobile site, by reason.",
		},
		[]string{"reason"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Scrape results by outcome.",
		},
		[]string{"outcome"},
	)
	quality := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_quality_score",
			Help:    "Quality score of successful records.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, escalations, records, quality)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		EscalationsTotal: escalations,
		RecordsTotal:     records,
		QualityScore:     quality,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncEscalation counts a switch to the mobile site.
func (m *Metrics) IncEscalation(reason string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(reason).Inc()
}

// IncRecord counts a finished scrape by outcome.
func (m *Metrics) IncRecord(outcome string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveQuality records the score of a successful record.
func (m *Metrics) ObserveQuality(score int) {
	if m == nil {
		return
	}
	m.QualityScore.Observe(float64(score))
}
