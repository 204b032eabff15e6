// Package metrics provides Prometheus metrics collection and exposition.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the request pipeline.
type Collector struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpLatency         prometheus.Histogram
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	rateLimitRejections prometheus.Counter
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userhub_http_requests_total",
			Help: "HTTP responses by status code and method",
		}, []string{"status_code", "method"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_response_cache_hits_total",
			Help: "Responses served from the response cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_response_cache_misses_total",
			Help: "Allow-listed requests that missed the response cache",
		}),
		rateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.cacheHits,
		c.cacheMisses,
		c.rateLimitRejections,
	)

	return c
}

// RecordCacheHit counts a response cache hit.
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss counts a response cache miss.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordRateLimitRejection counts a rate limiter rejection.
func (c *Collector) RecordRateLimitRejection() { c.rateLimitRejections.Inc() }

// Middleware returns a Gin middleware recording request counts and latency.
func (c *Collector) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		c.httpLatency.Observe(time.Since(start).Seconds())
		c.httpRequests.WithLabelValues(
			strconv.Itoa(ctx.Writer.Status()),
			ctx.Request.Method,
		).Inc()
	})
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
