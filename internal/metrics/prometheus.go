package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "btc_order_gw"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
	}
	requests := counter("requests_total", "Total number of venue HTTP request attempts.")
	retries := counter("request_retries_total", "Total number of venue request timeout retries.")
	requestFailures := counter("request_failures_total", "Total number of venue requests that failed after retries.")
	ordersPlaced := counter("orders_placed_total", "Total number of orders submitted to a venue.")
	ordersFailed := counter("orders_failed_total", "Total number of order submission failures.")
	ordersCancelled := counter("orders_cancelled_total", "Total number of orders cancelled on a venue.")
	priceHits := counter("price_cache_hits_total", "Total number of price lookups served from the store.")
	priceRefreshes := counter("price_refreshes_total", "Total number of price snapshots fetched from a venue.")
	reconcileFailures := counter("reconcile_failures_total", "Total number of order reconciliation failures.")

	registry.MustRegister(requests, retries, requestFailures, ordersPlaced, ordersFailed,
		ordersCancelled, priceHits, priceRefreshes, reconcileFailures)

	m := &Metrics{
		Requests:          promCounter{requests},
		RequestRetries:    promCounter{retries},
		RequestFailures:   promCounter{requestFailures},
		OrdersPlaced:      promCounter{ordersPlaced},
		OrdersFailed:      promCounter{ordersFailed},
		OrdersCancelled:   promCounter{ordersCancelled},
		PriceCacheHits:    promCounter{priceHits},
		PriceRefreshes:    promCounter{priceRefreshes},
		ReconcileFailures: promCounter{reconcileFailures},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
