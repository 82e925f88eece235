// Package metrics exposes the node's Prometheus instrumentation. Metrics
// register against the default registry and are served by the API's
// /metrics route.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chain metrics
	BlocksCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridtokenx",
			Subsystem: "chain",
			Name:      "blocks_committed_total",
			Help:      "Total number of blocks appended to the chain.",
		},
	)

	TransactionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridtokenx",
			Subsystem: "chain",
			Name:      "transactions_applied_total",
			Help:      "Total number of transactions applied, labeled by kind.",
		},
		[]string{"kind"},
	)

	ChainHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridtokenx",
			Subsystem: "chain",
			Name:      "height",
			Help:      "Current chain height (number of blocks).",
		},
	)

	EnergyTradedKWh = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridtokenx",
			Subsystem: "chain",
			Name:      "energy_traded_kwh_total",
			Help:      "Total energy settled on chain in kWh.",
		},
	)

	// Pool metrics
	PendingPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridtokenx",
			Subsystem: "mempool",
			Name:      "pending_transactions",
			Help:      "Current number of transactions waiting in the pool.",
		},
	)

	// Consensus metrics
	RoundsRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridtokenx",
			Subsystem: "consensus",
			Name:      "rounds_total",
			Help:      "Total consensus rounds, labeled by outcome (committed, empty, missed, failed).",
		},
		[]string{"outcome"},
	)

	RoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gridtokenx",
			Subsystem: "consensus",
			Name:      "round_duration_seconds",
			Help:      "Histogram of consensus round durations.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	ActiveValidators = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridtokenx",
			Subsystem: "consensus",
			Name:      "active_validators",
			Help:      "Current number of active validators in the registry.",
		},
	)

	MiningAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridtokenx",
			Subsystem: "consensus",
			Name:      "mining_nonce_attempts_total",
			Help:      "Total nonce attempts across all proof-of-work searches.",
		},
	)
)

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
