// Package metrics holds the prometheus counters of the staking client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "web3stake"

var (
	// Operations counts user operations by op (stake, withdraw, claim, approve) and result.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Staking operations by result",
	}, []string{"op", "result"})

	// RetryAttempts counts failed attempts seen by the retry executor, by error class.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_failed_attempts_total",
		Help:      "Failed attempts inside the retry executor",
	}, []string{"class"})

	RetryExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_exhausted_total",
		Help:      "Operations that failed after the whole attempt budget",
	})

	LifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_transitions_total",
		Help:      "Transaction lifecycle transitions",
	}, []string{"op", "status"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notifications by kind",
	}, []string{"kind"})

	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_calls_total",
		Help:      "JSON-RPC calls to the node",
	}, []string{"method", "result"})

	RPCRateLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rpc_rate_limit",
		Help:      "Current RPC calls per second allowed by the limiter",
	})
)

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
