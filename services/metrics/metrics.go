// Package metrics exposes crawl and extraction counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/harvester/logger"
)

const namespace = "harvester"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors of one process on a private registry
type Metrics struct {
	registry    *prometheus.Registry
	pages       *prometheus.CounterVec
	identifiers *prometheus.CounterVec
	records     *prometheus.CounterVec
	jobs        *prometheus.CounterVec
	extractions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_pages_total",
			Help:      "List pages fetched, by site and outcome",
		}, []string{"site", "outcome"}),
		identifiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_discovered_total",
			Help:      "Distinct item identifiers discovered on list pages",
		}, []string{"site"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Detail records processed, by site and outcome",
		}, []string{"site", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_jobs_total",
			Help:      "Page fetch-and-extract jobs, by outcome",
		}, []string{"outcome"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Non-empty extraction results, by kind",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Time spent per crawl unit",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"unit"}),
	}

	m.registry.MustRegister(
		m.pages, m.identifiers, m.records, m.jobs, m.extractions, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// ListPage counts one list page fetch
func (m *Metrics) ListPage(site string, ok bool) {
	m.pages.WithLabelValues(site, outcome(ok)).Inc()
}

// Identifiers adds newly discovered identifiers
func (m *Metrics) Identifiers(site string, n int) {
	m.identifiers.WithLabelValues(site).Add(float64(n))
}

// Record counts one detail record
func (m *Metrics) Record(site string, ok bool) {
	m.records.WithLabelValues(site, outcome(ok)).Inc()
}

// Job counts one page job
func (m *Metrics) Job(ok bool) {
	m.jobs.WithLabelValues(outcome(ok)).Inc()
}

// Extraction counts one non-empty extraction of kind
func (m *Metrics) Extraction(kind string) {
	m.extractions.WithLabelValues(kind).Inc()
}

// Observe records how long a unit took
func (m *Metrics) Observe(unit string, d time.Duration) {
	m.duration.WithLabelValues(unit).Observe(d.Seconds())
}

// Registry exposes the registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
