// Package metrics holds the prometheus collectors of the storefront.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	registry *prometheus.Registry

	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	Checkouts   *prometheus.CounterVec
	Settlements *prometheus.CounterVec
	Webhooks    *prometheus.CounterVec
}

// New builds a fresh registry, so tests can create as many as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Finalization attempts by gateway, source and outcome.",
		}, []string{"gateway", "source", "outcome"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events received by type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.LatencyMS, m.Checkouts, m.Settlements, m.Webhooks,
	)
	return m
}

func (m *Metrics) Checkout(gateway, outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(gateway, outcome).Inc()
}

func (m *Metrics) Settlement(gateway, source, outcome string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(gateway, source, outcome).Inc()
}

func (m *Metrics) Webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(eventType, outcome).Inc()
}

// Middleware counts requests by matched route, not raw path, to keep label
// cardinality bounded.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
