// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the simulator's collectors on a private registry so that
// several instances (tests, lambda warm starts) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	TracesTotal *prometheus.CounterVec
	TraceHops   *prometheus.HistogramVec
	LedgerSize  prometheus.Gauge
	Evictions   prometheus.Counter
	LoginsTotal *prometheus.CounterVec
	WSStreams   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracesim_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracesim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 1.5, 2, 3, 5},
		}, []string{"method", "path"}),
		TracesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracesim_traces_total",
			Help: "Synthesized traces by type and outcome",
		}, []string{"trace_type", "outcome"}),
		TraceHops: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracesim_trace_hops",
			Help:    "Hop count of synthesized paths",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}, []string{"trace_type"}),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracesim_ledger_entries",
			Help: "History entries currently retained",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "tracesim_ledger_evictions_total",
			Help: "History entries evicted by the retention policy",
		}),
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracesim_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		WSStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracesim_ws_streams_active",
			Help: "Open websocket trace streams",
		}),
	}
}

// ObserveTrace records the outcome of one trace.
func (m *Metrics) ObserveTrace(traceType, outcome string, hops int) {
	if m == nil {
		return
	}
	m.TracesTotal.WithLabelValues(traceType, outcome).Inc()
	if hops > 0 {
		m.TraceHops.WithLabelValues(traceType).Observe(float64(hops))
	}
}

// LedgerHook keeps the ledger gauges current. It is meant for store.WithSizeHook.
func (m *Metrics) LedgerHook() func(size int, evicted bool) {
	return func(size int, evicted bool) {
		if m == nil {
			return
		}
		m.LedgerSize.Set(float64(size))
		if evicted {
			m.Evictions.Inc()
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records per-request counters. Paths use the route template so
// query strings and ids do not explode cardinality.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
