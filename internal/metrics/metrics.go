// Package metrics exposes scrape run counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "komprice"

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Metrics struct {
	registry *prometheus.Registry

	ItemsExtracted   *prometheus.CounterVec
	ItemsDropped     *prometheus.CounterVec
	BatchesCommitted *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_extracted_total",
			Help:      "Complete items extracted from listing pages.",
		}, []string{"site"}),
		ItemsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_dropped_total",
			Help:      "Item nodes skipped for missing fields or extraction errors.",
		}, []string{"site"}),
		BatchesCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_committed_total",
			Help:      "Batches written to the database.",
		}, []string{"site"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Finished scrape runs by outcome.",
		}, []string{"site", "status"}),
		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries of failed operations.",
		}, []string{"operation"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of scrape runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"site"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRun(site string, err error, elapsed time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.Runs.WithLabelValues(site, status).Inc()
	m.RunDuration.WithLabelValues(site).Observe(elapsed.Seconds())
}

// RetryHook counts retries; it matches retry.Policy.OnRetry.
func (m *Metrics) RetryHook(operation string) {
	m.RetryAttempts.WithLabelValues(operation).Inc()
}
