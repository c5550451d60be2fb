// Package metrics exposes Prometheus metrics for ingestion, answering and
// schedule extraction.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "medrag"

// Collector holds the application metrics on its own registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Ingests        *prometheus.CounterVec
	ChunksIndexed  prometheus.Counter
	Questions      *prometheus.CounterVec
	Schedules      *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	IndexEntries   prometheus.Gauge
	JobsInProgress prometheus.Gauge
}

// New creates a collector with a fresh registry.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Ingests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ingest_total",
				Help:      "Drug label ingestions by outcome",
			},
			[]string{"outcome"},
		),
		ChunksIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "chunks_indexed_total",
				Help:      "Total number of chunks added to the index",
			},
		),
		Questions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "questions_total",
				Help:      "Questions answered by outcome",
			},
			[]string{"outcome"},
		),
		Schedules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "schedules_total",
				Help:      "Schedule extractions by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Core operation duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		IndexEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "index_entries",
				Help:      "Entries in the semantic index at last count",
			},
		),
		JobsInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "ingest_jobs_in_progress",
				Help:      "Batch ingestion jobs currently running",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.Ingests,
		c.ChunksIndexed,
		c.Questions,
		c.Schedules,
		c.StageDuration,
		c.IndexEntries,
		c.JobsInProgress,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveIngest records one ingestion and the chunks it indexed.
func (c *Collector) ObserveIngest(outcome string, chunks int, d time.Duration) {
	if c == nil {
		return
	}
	c.Ingests.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		c.ChunksIndexed.Add(float64(chunks))
	}
	c.StageDuration.WithLabelValues("ingest").Observe(d.Seconds())
}

// ObserveQuestion records one answered question.
func (c *Collector) ObserveQuestion(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Questions.WithLabelValues(outcome).Inc()
	c.StageDuration.WithLabelValues("ask").Observe(d.Seconds())
}

// ObserveSchedule records one schedule extraction.
func (c *Collector) ObserveSchedule(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Schedules.WithLabelValues(outcome).Inc()
	c.StageDuration.WithLabelValues("schedule").Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetIndexEntries records the current index size.
func (c *Collector) SetIndexEntries(n int) {
	if c == nil {
		return
	}
	c.IndexEntries.Set(float64(n))
}

// JobStarted and JobFinished track running batch jobs.
func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.JobsInProgress.Inc()
}

func (c *Collector) JobFinished() {
	if c == nil {
		return
	}
	c.JobsInProgress.Dec()
}
