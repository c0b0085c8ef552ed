package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	Requests          Counter
	RequestRetries    Counter
	RequestFailures   Counter
	OrdersPlaced      Counter
	OrdersFailed      Counter
	OrdersCancelled   Counter
	PriceCacheHits    Counter
	PriceRefreshes    Counter
	ReconcileFailures Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		Requests:          n,
		RequestRetries:    n,
		RequestFailures:   n,
		OrdersPlaced:      n,
		OrdersFailed:      n,
		OrdersCancelled:   n,
		PriceCacheHits:    n,
		PriceRefreshes:    n,
		ReconcileFailures: n,
	}
}
