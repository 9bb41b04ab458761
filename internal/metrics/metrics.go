// Package metrics records per-run job metrics and pushes them to a Prometheus Pushgateway.
//
// The job is a short-lived batch process, so nothing is scraped: [Manager.Push] sends the
// registry once at the end of the run. An empty Pushgateway URL turns pushing into a no-op.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/shared"
	"github.com/desertthunder/popetl/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "popetl"

// DefaultJob is the Pushgateway job label used when none is configured.
const DefaultJob = "popetl"

// Manager owns a private registry with the job's collectors.
type Manager struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	extracted   prometheus.Gauge
	loaded      prometheus.Counter
	byCategory  *prometheus.GaugeVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge

	pushURL string
	job     string
	client  *http.Client
}

// NewManager creates a Manager for cfg. client is used for pushes and may be nil.
func NewManager(cfg shared.MetricsConfig, client *http.Client) *Manager {
	job := cfg.Job
	if job == "" {
		job = DefaultJob
	}
	if client == nil {
		client = http.DefaultClient
	}

	m := &Manager{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by terminal outcome.",
			},
			[]string{"outcome"},
		),
		extracted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_extracted",
			Help:      "Play events extracted by the most recent run.",
		}),
		loaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Rows appended to the popularity table.",
		}),
		byCategory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_by_category",
				Help:      "Validated records of the most recent run per popularity category.",
			},
			[]string{"category"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that did not fail.",
		}),
		pushURL: cfg.PushgatewayURL,
		job:     job,
		client:  client,
	}

	m.registry.MustRegister(m.runs, m.extracted, m.loaded, m.byCategory, m.duration, m.lastSuccess)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Enabled reports whether a Pushgateway is configured.
func (m *Manager) Enabled() bool {
	return m.pushURL != ""
}

// ObserveRun implements [tasks.Observer].
func (m *Manager) ObserveRun(report *tasks.Report, err error) {
	if report == nil {
		return
	}

	m.runs.WithLabelValues(string(report.Outcome())).Inc()
	m.extracted.Set(float64(report.Extracted))
	m.loaded.Add(float64(report.Loaded))
	m.duration.Observe(report.Duration().Seconds())

	for _, c := range models.Categories() {
		m.byCategory.WithLabelValues(c.String()).Set(float64(report.Categories[c]))
	}

	if err == nil && !report.FinishedAt.IsZero() {
		m.lastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

// Push sends the registry to the Pushgateway, replacing the job's previous metrics.
func (m *Manager) Push(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	err := push.New(m.pushURL, m.job).
		Gatherer(m.registry).
		Client(m.client).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", m.pushURL, err)
	}
	return nil
}
