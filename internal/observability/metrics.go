package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the registration and dispatch
// flows. All methods are nil-safe so wiring metrics stays optional.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	ordersRegisteredTotal    *prometheus.CounterVec
	notificationsClaimed     *prometheus.CounterVec
	dispatchPublishedTotal   *prometheus.CounterVec
	deliveryResultsTotal     *prometheus.CounterVec
	deadLettersTotal         *prometheus.CounterVec
	operationDuration        *prometheus.HistogramVec
	operationFailuresTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notification_orders",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ordersRegisteredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "orders_registered_total",
				Help:      "Total number of notification orders registered, by channel.",
			},
			[]string{"channel"},
		),
		notificationsClaimed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "notifications_claimed_total",
				Help:      "Total number of notifications claimed for dispatch, by channel.",
			},
			[]string{"channel"},
		),
		dispatchPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "dispatch_published_total",
				Help:      "Total number of claimed notifications handed to gateways, by channel.",
			},
			[]string{"channel"},
		),
		deliveryResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "delivery_results_total",
				Help:      "Total number of gateway delivery results applied, by channel and result.",
			},
			[]string{"channel", "result"},
		),
		deadLettersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "dead_letters_total",
				Help:      "Total number of dead delivery reports recorded, by channel.",
			},
			[]string{"channel"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notification_orders",
				Name:      "operation_duration_seconds",
				Help:      "Component operation duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"component", "operation"},
		),
		operationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_orders",
				Name:      "operation_failures_total",
				Help:      "Total number of failed component operations.",
			},
			[]string{"component", "operation"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.ordersRegisteredTotal,
		m.notificationsClaimed,
		m.dispatchPublishedTotal,
		m.deliveryResultsTotal,
		m.deadLettersTotal,
		m.operationDuration,
		m.operationFailuresTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}
	return c.Response().StatusCode()
}

func (m *Metrics) IncOrdersRegistered(channel string) {
	if m == nil {
		return
	}
	m.ordersRegisteredTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) AddNotificationsClaimed(channel string, count int) {
	if m == nil || count < 1 {
		return
	}
	m.notificationsClaimed.WithLabelValues(normalizeLabel(channel)).Add(float64(count))
}

func (m *Metrics) IncDispatchPublished(channel string) {
	if m == nil {
		return
	}
	m.dispatchPublishedTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncDeliveryResult(channel, result string) {
	if m == nil {
		return
	}
	resultLabel := strings.TrimSpace(result)
	if resultLabel == "" {
		resultLabel = "unknown"
	}
	m.deliveryResultsTotal.WithLabelValues(normalizeLabel(channel), resultLabel).Inc()
}

func (m *Metrics) IncDeadLetters(channel string) {
	if m == nil {
		return
	}
	m.deadLettersTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) observeOperation(component, operation string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
	if failed {
		m.operationFailuresTotal.WithLabelValues(component, operation).Inc()
	}
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
