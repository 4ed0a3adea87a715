package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StableMetrics records operation activity for the stablecoin engine.
type StableMetrics struct {
	operations     *prometheus.CounterVec
	healthFailures prometheus.Counter
	liquidations   *liquidationMetrics
}

type liquidationMetrics struct {
	debtCovered prometheus.Counter
	seized      prometheus.Counter
}

var (
	stableMetricsOnce sync.Once
	stableRegistry    *StableMetrics
)

// Stable returns the lazily-initialised metrics registry used to record
// engine activity.
func Stable() *StableMetrics {
	stableMetricsOnce.Do(func() {
		stableRegistry = &StableMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			healthFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "health_factor_rejections_total",
				Help:      "Count of operations rejected because a position would fall below the minimum health factor.",
			}),
			liquidations: &liquidationMetrics{
				debtCovered: prometheus.NewCounter(prometheus.CounterOpts{
					Namespace: "dsc",
					Subsystem: "engine",
					Name:      "liquidation_debt_covered_total",
					Help:      "Cumulative debt repaid through liquidations, in the unit of account.",
				}),
				seized: prometheus.NewCounter(prometheus.CounterOpts{
					Namespace: "dsc",
					Subsystem: "engine",
					Name:      "liquidation_collateral_seized_total",
					Help:      "Cumulative collateral seized through liquidations, in native asset units.",
				}),
			},
		}
		prometheus.MustRegister(
			stableRegistry.operations,
			stableRegistry.healthFailures,
			stableRegistry.liquidations.debtCovered,
			stableRegistry.liquidations.seized,
		)
	})
	return stableRegistry
}

// RecordOperation counts one engine operation with its outcome.
func (m *StableMetrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// RecordHealthRejection counts a health-factor rejection.
func (m *StableMetrics) RecordHealthRejection() {
	if m == nil {
		return
	}
	m.healthFailures.Inc()
}

// RecordLiquidation accumulates liquidation volume counters.
func (m *StableMetrics) RecordLiquidation(debtCovered, seized *big.Int) {
	if m == nil {
		return
	}
	m.liquidations.debtCovered.Add(approximate(debtCovered))
	m.liquidations.seized.Add(approximate(seized))
}

func approximate(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	if value < 0 {
		return 0
	}
	return value
}
