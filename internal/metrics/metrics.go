// Package metrics exposes transaction and swap counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TxSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ammswap_tx_submitted_total", Help: "Signed transactions accepted by the node"},
		[]string{"method"},
	)
	TxOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ammswap_tx_outcome_total", Help: "Submitted transactions by final outcome"},
		[]string{"method", "outcome"},
	)
	ConfirmSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ammswap_confirm_seconds",
			Help:    "Time from submission to receipt or timeout",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
		[]string{"method"},
	)
	SwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ammswap_swaps_total", Help: "Buy and sell operations by terminal state"},
		[]string{"side", "state", "kind"},
	)
)

func init() {
	prometheus.MustRegister(TxSubmittedTotal, TxOutcomeTotal, ConfirmSeconds, SwapsTotal)
}

func TxSubmitted(method string) {
	TxSubmittedTotal.WithLabelValues(method).Inc()
}

// TxOutcome counts success, reverted or timeout.
func TxOutcome(method, outcome string) {
	TxOutcomeTotal.WithLabelValues(method, outcome).Inc()
}

func ObserveConfirmation(method string, d time.Duration) {
	ConfirmSeconds.WithLabelValues(method).Observe(d.Seconds())
}

func SwapFinished(side, state, kind string) {
	SwapsTotal.WithLabelValues(side, state, kind).Inc()
}

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// NewServer returns an unstarted metrics server on addr.
func NewServer(addr string) *http.Server {
	return &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
}
