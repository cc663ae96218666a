// internal/utils/metrics/export_test.go
package metrics

import "github.com/prometheus/client_golang/prometheus/testutil"

func FailoverCount(pool, reason string) float64 {
	return testutil.ToFloat64(rpcFailovers.WithLabelValues(pool, reason))
}

func ExhaustedCount(pool string) float64 {
	return testutil.ToFloat64(rpcExhausted.WithLabelValues(pool))
}

func TransactionCount(side, status string) float64 {
	return testutil.ToFloat64(transactionCounter.WithLabelValues(side, status))
}

func SnapshotGauges() (positions, balanceSOL, valueUSD float64) {
	return testutil.ToFloat64(openPositions), testutil.ToFloat64(walletBalance), testutil.ToFloat64(positionsValue)
}

func DashboardConnected() float64 {
	return testutil.ToFloat64(dashboardConnections)
}
