package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scraper's Prometheus collectors. It implements pipeline.Observer.
type Metrics struct {
	registry *prometheus.Registry

	PagesVisited     *prometheus.CounterVec
	Records          *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	ActiveRuns       prometheus.Gauge
	UploadErrors     *prometheus.CounterVec
	ArtifactsWritten *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesVisited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_visited_total",
				Help: "Pages visited per source, by outcome",
			},
			[]string{"source", "outcome"},
		),
		Records: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_records_total",
				Help: "Extracted records per source, by outcome",
			},
			[]string{"source", "outcome"},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Finished runs per source, by final state",
			},
			[]string{"source", "state"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_run_duration_seconds",
				Help:    "Wall time of a run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"source"},
		),
		ActiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_active_runs",
			Help: "Runs currently paginating",
		}),
		UploadErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_upload_errors_total",
				Help: "Failed artifact uploads",
			},
			[]string{"target"},
		),
		ArtifactsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_artifacts_written_total",
				Help: "Artifacts persisted, by format",
			},
			[]string{"format"},
		),
	}
}

func (m *Metrics) PageVisited(source string, skipped bool) {
	outcome := "ok"
	if skipped {
		outcome = "skipped"
	}
	m.PagesVisited.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) RecordsProcessed(source string, accepted, rejected, duplicates int) {
	m.Records.WithLabelValues(source, "accepted").Add(float64(accepted))
	m.Records.WithLabelValues(source, "rejected").Add(float64(rejected))
	m.Records.WithLabelValues(source, "duplicate").Add(float64(duplicates))
}

// RunFinished records the final state and duration of a run.
func (m *Metrics) RunFinished(source, state string, d time.Duration) {
	m.Runs.WithLabelValues(source, state).Inc()
	m.RunDuration.WithLabelValues(source).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
