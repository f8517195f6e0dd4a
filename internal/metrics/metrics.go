// Package metrics exports refinement and HTTP metrics in Prometheus format.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "refiner"

// Collector owns a registry and the service's metric families.
type Collector struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	batchLatency  prometheus.Histogram
	records       *prometheus.CounterVec
	rewards       prometheus.Histogram
	degradations  *prometheus.CounterVec
	storeOutcomes *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	rateLimited   prometheus.Counter
}

// New creates a Collector on a fresh registry, including Go runtime and
// process collectors.
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{registry: registry}

	c.batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches processed, by result",
		},
		[]string{"result"},
	)
	c.batchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time to process one batch",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	c.records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_refined_total",
			Help:      "Records refined, by chosen action",
		},
		[]string{"action"},
	)
	c.rewards = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reward",
			Help:      "Per-record reward",
			Buckets:   []float64{-0.1, -0.05, 0, 0.05, 0.1},
		},
	)
	c.degradations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_degraded_total",
			Help:      "Classifications replaced by the neutral default, by reason",
		},
		[]string{"reason"},
	)
	c.storeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_outcomes_total",
			Help:      "Durable store outcomes, by kind",
		},
		[]string{"kind"},
	)
	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route and status",
		},
		[]string{"route", "status"},
	)
	c.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	c.rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	registry.MustRegister(
		c.batches, c.batchLatency, c.records, c.rewards, c.degradations,
		c.storeOutcomes, c.httpRequests, c.httpLatency, c.rateLimited,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveBatch records one processed batch.
func (c *Collector) ObserveBatch(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(result).Inc()
	c.batchLatency.Observe(d.Seconds())
}

// ObserveRecord records one refinement step.
func (c *Collector) ObserveRecord(action string, reward float64) {
	if c == nil {
		return
	}
	c.records.WithLabelValues(action).Inc()
	c.rewards.Observe(reward)
}

// ObserveDegraded records a classification that fell back to neutral.
func (c *Collector) ObserveDegraded(reason string) {
	if c == nil {
		return
	}
	c.degradations.WithLabelValues(reason).Inc()
}

// ObserveStore records a durable store outcome.
func (c *Collector) ObserveStore(kind string) {
	if c == nil {
		return
	}
	c.storeOutcomes.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveRateLimited records a rejected request.
func (c *Collector) ObserveRateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}
