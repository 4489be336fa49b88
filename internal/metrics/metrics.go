// Package metrics registers prometheus counters for the trading pipeline and
// serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_ticks_total", Help: "Market ticks published to the feed hub"},
		[]string{"symbol"},
	)
	TicksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_ticks_dropped_total", Help: "Ticks dropped because a subscriber buffer was full"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_signals_total", Help: "Signals emitted by strategies"},
		[]string{"symbol", "side"},
	)
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_orders_submitted_total", Help: "Orders acknowledged by the broker"},
		[]string{"symbol", "side"},
	)
	RiskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_risk_rejections_total", Help: "Signals rejected by the risk manager"},
		[]string{"kind"},
	)
	BrokerRejections = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tradeflow_broker_rejections_total", Help: "Orders rejected by the broker"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_fills_total", Help: "Fills reconciled against orders"},
		[]string{"symbol", "side"},
	)
	FillDeliveryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tradeflow_fill_delivery_failures_total", Help: "Fill callbacks that exhausted their retries"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, TicksDropped, SignalsTotal, OrdersSubmitted,
		RiskRejections, BrokerRejections, FillsTotal, FillDeliveryFailures,
	)
}

// Serve exposes /metrics on the given address. The returned server should be
// shut down by the caller.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
