package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

var (
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "teraland",
		Name:      "http_request_duration_seconds",
		Help:      "Gateway HTTP request latency by route.",
		// ledger submits wait for commit, so the tail goes well past the defaults
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route", "code"})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teraland",
		Name:      "http_requests_total",
		Help:      "Gateway HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})
	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "teraland",
		Name:      "http_requests_inflight",
		Help:      "Gateway HTTP requests being served.",
	})
)

func init() {
	prometheus.MustRegister(httpDuration, httpRequests, httpInflight)
}

// MetricsMiddleware records request counts and latency per matched route.
// Latency samples carry the trace id as an exemplar when a span is active.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		start := time.Now()
		defer func() {
			httpInflight.Dec()
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			code := strconv.Itoa(c.Writer.Status())
			httpRequests.WithLabelValues(c.Request.Method, route, code).Inc()
			observe(c, httpDuration.WithLabelValues(c.Request.Method, route, code), time.Since(start).Seconds())
		}()
		c.Next()
	}
}

func observe(c *gin.Context, o prometheus.Observer, v float64) {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if eo, ok := o.(prometheus.ExemplarObserver); ok && sc.IsValid() {
		eo.ObserveWithExemplar(v, prometheus.Labels{"trace_id": sc.TraceID().String()})
		return
	}
	o.Observe(v)
}
