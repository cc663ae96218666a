// internal/utils/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rpcFailovers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_rpc_failovers_total",
			Help: "Endpoint rotations performed by the failover wrapper",
		},
		[]string{"pool", "reason"},
	)
	rpcExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_rpc_exhausted_total",
			Help: "Calls that failed on every endpoint of a pool",
		},
		[]string{"pool"},
	)
	rpcLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autotrader_rpc_latency_seconds",
			Help:    "Latency of a single endpoint attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool"},
	)
	transactionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_transactions_total",
			Help: "Swap transactions by side and outcome",
		},
		[]string{"side", "status"},
	)
	transactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autotrader_transaction_duration_seconds",
			Help:    "Time from quote request to signature",
			Buckets: prometheus.LinearBuckets(0, 0.5, 10),
		},
		[]string{"side"},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autotrader_reconcile_cycle_seconds",
			Help:    "Duration of a reconciliation cycle",
			Buckets: prometheus.LinearBuckets(0, 1, 15),
		},
	)
	cycleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autotrader_reconcile_cycle_errors_total",
			Help: "Reconciliation cycles that ended with an error",
		},
	)
	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autotrader_open_positions",
			Help: "Active positions reported in the last snapshot",
		},
	)
	walletBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autotrader_wallet_balance_sol",
			Help: "Wallet SOL balance reported in the last snapshot",
		},
	)
	positionsValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autotrader_positions_value_usd",
			Help: "USD value of active positions in the last snapshot",
		},
	)
	dashboardConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autotrader_dashboard_connected",
			Help: "1 while the dashboard websocket is connected",
		},
	)
)

func init() {
	prometheus.MustRegister(
		rpcFailovers,
		rpcExhausted,
		rpcLatency,
		transactionCounter,
		transactionDuration,
		cycleDuration,
		cycleErrors,
		openPositions,
		walletBalance,
		positionsValue,
		dashboardConnections,
	)
}

// RecordFailover counts one rotation of the named pool.
func RecordFailover(pool string, rateLimited bool) {
	reason := "error"
	if rateLimited {
		reason = "rate_limited"
	}
	rpcFailovers.WithLabelValues(pool, reason).Inc()
}

func RecordExhausted(pool string) {
	rpcExhausted.WithLabelValues(pool).Inc()
}

func RecordRPCLatency(pool string, d time.Duration) {
	rpcLatency.WithLabelValues(pool).Observe(d.Seconds())
}

// RecordTransaction записывает исход свопа (side: buy|sell).
func RecordTransaction(side string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	transactionCounter.WithLabelValues(side, status).Inc()
	transactionDuration.WithLabelValues(side).Observe(d.Seconds())
}

func ObserveCycle(d time.Duration, err error) {
	cycleDuration.Observe(d.Seconds())
	if err != nil {
		cycleErrors.Inc()
	}
}

func SetSnapshot(positions int, balanceSOL, valueUSD float64) {
	openPositions.Set(float64(positions))
	walletBalance.Set(balanceSOL)
	positionsValue.Set(valueUSD)
}

func SetDashboardConnected(connected bool) {
	if connected {
		dashboardConnections.Set(1)
		return
	}
	dashboardConnections.Set(0)
}
