// Package metrics holds the Prometheus collectors of the gateway and the
// order service.
//
//	m := metrics.New()
//	router.Use(m.GinMiddleware())
//	router.GET("/metrics", m.GinHandler())
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/example/khanpan/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "khanpan"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestTotal     *prometheus.CounterVec
	RequestInFlight  prometheus.Gauge
	OrderTransitions *prometheus.CounterVec
	LLMDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		RequestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "order_transitions_total",
			Help:      "Order writes by action and resulting status.",
		}, []string{"action", "status"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Duration of recommendation completions in seconds.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.RequestTotal,
		m.RequestInFlight,
		m.OrderTransitions,
		m.LLMDuration,
	)
	return m
}

// GinMiddleware records duration, count and in-flight requests. Routes are
// labelled by their pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestInFlight.Inc()
		defer m.RequestInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.RequestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}

func (m *Metrics) GinHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// NewServer serves the registry at /metrics on addr, for processes without
// an HTTP API of their own such as the order service.
func (m *Metrics) NewServer(addr string) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", m.GinHandler())
	return &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
}

// Record counts a ledger write. It satisfies ledger.Recorder.
func (m *Metrics) Record(_ context.Context, action string, order *models.Order) {
	status := string(order.Status)
	if status == "" {
		status = "none"
	}
	m.OrderTransitions.WithLabelValues(action, status).Inc()
}

// ObserveCompletion satisfies recommend.Observer.
func (m *Metrics) ObserveCompletion(outcome string, took time.Duration) {
	m.LLMDuration.WithLabelValues(outcome).Observe(took.Seconds())
}
