// Package metrics exposes Prometheus collectors for HTTP traffic and workflow transitions.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the collectors. Each instance has its own prometheus.Registry
// so tests can build as many as they like.
type Registry struct {
	reg         *prometheus.Registry
	httpLatency *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// New registers the default runtime collectors plus the application metrics.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		reg: reg,
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indor_desk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indor_desk",
			Name:      "workflow_transitions_total",
			Help:      "Committed workflow operations.",
		}, []string{"operation"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indor_desk",
			Name:      "workflow_rejections_total",
			Help:      "Workflow operations refused by a precondition.",
		}, []string{"operation", "code"}),
	}
	reg.MustRegister(r.httpLatency, r.transitions, r.rejections)
	return r
}

// Transition counts a committed workflow operation.
func (r *Registry) Transition(operation string) {
	r.transitions.WithLabelValues(operation).Inc()
}

// Rejection counts a workflow operation refused with the given error code.
func (r *Registry) Rejection(operation, code string) {
	if code == "" {
		code = "unknown"
	}
	r.rejections.WithLabelValues(operation, code).Inc()
}

// Middleware records request latency. Unmatched routes share one label.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpLatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
