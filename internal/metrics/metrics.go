package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kitchen"

type Metrics struct {
	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	Connections    prometheus.Gauge
	DeliveredTotal prometheus.Counter
	DroppedTotal   prometheus.Counter
	Transitions    *prometheus.CounterVec

	reg *prometheus.Registry
}

// New registers all collectors on a private registry so several instances
// can coexist in one process.
func New(service string) *Metrics {
	service = subsystem(service)
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "merchant_connections",
			Help:      "Live merchant real-time sessions.",
		}),
		DeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "notifications_delivered_total",
			Help:      "Notification messages delivered to merchant sessions.",
		}),
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "notifications_dropped_total",
			Help:      "Merchant sessions dropped after a failed delivery.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "order_transitions_total",
			Help:      "Order lifecycle actions by result.",
		}, []string{"action", "result"}),
		reg: prometheus.NewRegistry(),
	}
	m.reg.MustRegister(
		m.Requests, m.LatencyMS, m.Connections, m.DeliveredTotal, m.DroppedTotal, m.Transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// subsystem turns a service name like "kitchen-api" into a valid metric
// name fragment.
func subsystem(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, s)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records one sample per request labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *Metrics) ConnectionsChanged(n int) { m.Connections.Set(float64(n)) }
func (m *Metrics) Delivered(n int)          { m.DeliveredTotal.Add(float64(n)) }
func (m *Metrics) Dropped(n int)            { m.DroppedTotal.Add(float64(n)) }

func (m *Metrics) RecordTransition(a orders.Action, result string) {
	m.Transitions.WithLabelValues(string(a), result).Inc()
}
