// Package metrics exposes Prometheus counters for crawl, sync and editorial activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsroom"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CrawlArticles    *prometheus.CounterVec
	CrawlLinks       *prometheus.CounterVec
	SyncOperations   *prometheus.CounterVec
	EditorialActions *prometheus.CounterVec
	TasksRunning     prometheus.Gauge
	TaskDuration     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CrawlArticles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "articles_total",
			Help:      "Articles processed by crawls, by outcome (created, duplicate, failed).",
		}, []string{"agency", "outcome"}),
		CrawlLinks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "links_total",
			Help:      "Article links discovered on target pages.",
		}, []string{"agency"}),
		SyncOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "CMS sync operations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		EditorialActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editorial",
			Name:      "results_total",
			Help:      "Per-article results of editorial actions.",
		}, []string{"action", "outcome"}),
		TasksRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "running",
			Help:      "Background tasks currently running.",
		}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Duration of background tasks in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"task"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CrawlOutcome(agency, outcome string) {
	if m == nil {
		return
	}
	m.CrawlArticles.WithLabelValues(agency, outcome).Inc()
}

func (m *Metrics) LinksFound(agency string, n int) {
	if m == nil {
		return
	}
	m.CrawlLinks.WithLabelValues(agency).Add(float64(n))
}

func (m *Metrics) SyncOutcome(operation string, err error) {
	if m == nil {
		return
	}
	m.SyncOperations.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) EditorialResult(action string, ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "applied"
	}
	m.EditorialActions.WithLabelValues(action, result).Inc()
}

// TaskStarted marks a task as running and returns the func that records its end.
func (m *Metrics) TaskStarted(task string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.TasksRunning.Inc()
	return func() {
		m.TasksRunning.Dec()
		m.TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
