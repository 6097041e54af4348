package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"tableside/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for the ordering system. Each
// instance has its own registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	payments       *prometheus.CounterVec
	paymentAmount  *prometheus.CounterVec
	approvals      *prometheus.CounterVec
	replays        prometheus.Counter
	eventListeners prometheus.Gauge
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableside_http_requests_total",
				Help: "HTTP requests handled by the API",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tableside_http_request_duration_seconds",
				Help:    "Time taken to handle API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableside_payments_recorded_total",
				Help: "Payments recorded against orders",
			},
			[]string{"method", "status"},
		),
		paymentAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableside_payments_amount_rwf_total",
				Help: "Sum of recorded payments in RWF",
			},
			[]string{"method"},
		),
		approvals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableside_approvals_total",
				Help: "Order approval attempts by outcome",
			},
			[]string{"mode", "method", "outcome"},
		),
		replays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tableside_idempotent_replays_total",
				Help: "Payment requests answered from the idempotency store",
			},
		),
		eventListeners: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tableside_event_listeners",
				Help: "Connected websocket event listeners",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.payments,
		m.paymentAmount,
		m.approvals,
		m.replays,
		m.eventListeners,
	)
	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware counts and times requests by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// PaymentRecorded counts a stored payment
func (m *Metrics) PaymentRecorded(p models.Payment) {
	m.payments.WithLabelValues(string(p.Method), string(p.Status)).Inc()
	m.paymentAmount.WithLabelValues(string(p.Method)).Add(float64(p.AmountPaid))
}

// IdempotentReplay counts a payment request served from a stored response
func (m *Metrics) IdempotentReplay() {
	m.replays.Inc()
}

// ListenerConnected tracks websocket subscribers
func (m *Metrics) ListenerConnected() { m.eventListeners.Inc() }

// ListenerDisconnected tracks websocket subscribers
func (m *Metrics) ListenerDisconnected() { m.eventListeners.Dec() }

// ApprovalFinished records how an approval attempt ended. It satisfies
// checkout.Observer.
func (m *Metrics) ApprovalFinished(mode models.PaymentMode, method models.PaymentMethod, outcome string) {
	modeLabel := string(mode)
	if modeLabel == "" {
		modeLabel = "none"
	}
	methodLabel := string(method)
	if methodLabel == "" {
		methodLabel = "none"
	}
	m.approvals.WithLabelValues(modeLabel, methodLabel, outcome).Inc()
}
