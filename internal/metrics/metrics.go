package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's prometheus registry. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	mutations       *prometheus.CounterVec
	syncFailures    *prometheus.CounterVec
	sweptRecords    prometheus.Counter
	reportsSent     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbutler_mutations_total",
				Help: "Inventory writes by operation and backend",
			},
			[]string{"operation", "backend"},
		),
		syncFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbutler_sync_failures_total",
				Help: "Failed calls to the remote document store",
			},
			[]string{"operation"},
		),
		sweptRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stockbutler_swept_records_total",
				Help: "Used-up records removed by the retention sweep",
			},
		),
		reportsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbutler_reports_sent_total",
				Help: "Report mails by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockbutler_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		c.mutations,
		c.syncFailures,
		c.sweptRecords,
		c.reportsSent,
		c.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) RecordMutation(operation, backend string) {
	if c == nil {
		return
	}
	c.mutations.WithLabelValues(operation, backend).Inc()
}

func (c *Collector) RecordSyncFailure(operation string) {
	if c == nil {
		return
	}
	c.syncFailures.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordSwept(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.sweptRecords.Add(float64(n))
}

func (c *Collector) RecordReport(ok bool) {
	if c == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	c.reportsSent.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
