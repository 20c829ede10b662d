package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordHubAndTransitions(t *testing.T) {
	m := New("kitchen-api")
	m.ConnectionsChanged(3)
	m.Delivered(2)
	m.Dropped(1)
	m.RecordTransition(orders.ActionAccept, "ok")
	m.RecordTransition(orders.ActionAccept, "invalid_transition")

	if v := testutil.ToFloat64(m.Connections); v != 3 {
		t.Errorf("connections = %v", v)
	}
	if v := testutil.ToFloat64(m.DroppedTotal); v != 1 {
		t.Errorf("dropped = %v", v)
	}
	if v := testutil.ToFloat64(m.Transitions.WithLabelValues("accept", "ok")); v != 1 {
		t.Errorf("accept ok = %v", v)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New("kitchen-api")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/merchant/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/merchant/orders/abc", nil))

	if v := testutil.ToFloat64(m.Requests.WithLabelValues("/api/merchant/orders/{id}", "GET", "404")); v != 1 {
		t.Errorf("expected one sample for the route pattern, got %v", v)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "kitchen_kitchen_api_http_requests_total") {
		t.Error("metrics endpoint does not expose request counter")
	}
}
