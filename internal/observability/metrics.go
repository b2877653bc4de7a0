package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	hierarchyBuilds    prometheus.Counter
	hierarchyBuildTime prometheus.Histogram
	hierarchyParts     prometheus.Gauge
	hierarchyDangling  prometheus.Gauge
	hierarchyTruncated prometheus.Gauge

	mutations    *prometheus.CounterVec
	mutationTime *prometheus.HistogramVec

	upstreamRequests *prometheus.CounterVec
	upstreamTime     *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpTime     *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: gatherer,

		hierarchyBuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "bom_hierarchy_builds_total",
			Help: "Total number of hierarchy rebuilds",
		}),
		hierarchyBuildTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bom_hierarchy_build_duration_seconds",
			Help:    "Time spent building the usage forest from the part list",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		hierarchyParts: f.NewGauge(prometheus.GaugeOpts{
			Name: "bom_hierarchy_parts",
			Help: "Number of parts in the current snapshot",
		}),
		hierarchyDangling: f.NewGauge(prometheus.GaugeOpts{
			Name: "bom_hierarchy_dangling_edges",
			Help: "Usage edges skipped in the current snapshot because the child part is missing",
		}),
		hierarchyTruncated: f.NewGauge(prometheus.GaugeOpts{
			Name: "bom_hierarchy_truncated_nodes",
			Help: "Cycle marker nodes in the current snapshot",
		}),

		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bom_mutations_total",
			Help: "Mutations handled by the coordinator",
		}, []string{"op", "outcome"}),
		mutationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bom_mutation_duration_seconds",
			Help:    "Mutation latency including the refresh that follows it",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		upstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bom_part_service_requests_total",
			Help: "Calls made to the Part service",
		}, []string{"op", "status"}),
		upstreamTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bom_part_service_request_duration_seconds",
			Help:    "Part service call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bomd_http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "route", "status"}),
		httpTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bomd_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveBuild(parts, dangling, truncated int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.hierarchyBuilds.Inc()
	m.hierarchyBuildTime.Observe(elapsed.Seconds())
	m.hierarchyParts.Set(float64(parts))
	m.hierarchyDangling.Set(float64(dangling))
	m.hierarchyTruncated.Set(float64(truncated))
}

func (m *Metrics) ObserveMutation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
	m.mutationTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePartService matches partclient.Observer.
func (m *Metrics) ObservePartService(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(op, label).Inc()
	m.upstreamTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpTime.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
