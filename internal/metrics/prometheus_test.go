package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.Requests.Inc()
	prom.Metrics.Requests.Inc()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.ReconcileFailures.Inc()

	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"btc_order_gw_requests_total 2",
		"btc_order_gw_orders_placed_total 1",
		"btc_order_gw_reconcile_failures_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoop()
	m.Requests.Inc()
	m.OrdersFailed.Inc()
	m.PriceCacheHits.Inc()
}
