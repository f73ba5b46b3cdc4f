package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus mirrors of the ledger counters and breaker state, registered
// once and updated after every cycle. Served by the API on /metrics.

type Metrics struct {
	TokensProcessed prometheus.Counter
	OHLCVCallsMade  prometheus.Counter
	OHLCVCallsSaved prometheus.Counter
	CostSavingsPct  prometheus.Gauge
	BreakerState    prometheus.Gauge // 0=CLOSED 1=HALF_OPEN 2=OPEN
	BreakerFailures prometheus.Gauge
	CycleDuration   prometheus.Histogram
	FinalistCount   prometheus.Gauge

	lastLedger struct {
		tokens, made, saved int64
	}
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gemfinder", Name: "tokens_processed_total",
			Help: "Candidates ingested across all cycles.",
		}),
		OHLCVCallsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gemfinder", Name: "ohlcv_calls_made_total",
			Help: "Paid OHLCV calls issued.",
		}),
		OHLCVCallsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gemfinder", Name: "ohlcv_calls_saved_total",
			Help: "OHLCV calls avoided by progressive filtering.",
		}),
		CostSavingsPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gemfinder", Name: "cost_savings_ratio",
			Help: "saved / (saved + made), process lifetime.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gemfinder", Name: "breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		BreakerFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gemfinder", Name: "breaker_failure_count",
			Help: "Consecutive batch failures recorded by the breaker.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gemfinder", Name: "cycle_duration_seconds",
			Help:    "Wall time of a full detection cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		FinalistCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gemfinder", Name: "cycle_finalists",
			Help: "Finalists emitted by the most recent cycle.",
		}),
	}
	reg.MustRegister(
		m.TokensProcessed, m.OHLCVCallsMade, m.OHLCVCallsSaved,
		m.CostSavingsPct, m.BreakerState, m.BreakerFailures,
		m.CycleDuration, m.FinalistCount,
	)
	return m
}

// Observe syncs the gauges/counters from the end-of-cycle snapshots.
// Counters advance by the delta since the previous observation.
func (m *Metrics) Observe(ledger *CostLedger, breaker *CircuitBreaker, finalists int, cycleSeconds float64) {
	snap := ledger.Snapshot()

	m.TokensProcessed.Add(float64(snap.TokensProcessed - m.lastLedger.tokens))
	m.OHLCVCallsMade.Add(float64(snap.OHLCVCallsMade - m.lastLedger.made))
	m.OHLCVCallsSaved.Add(float64(snap.OHLCVCallsSaved - m.lastLedger.saved))
	m.lastLedger.tokens = snap.TokensProcessed
	m.lastLedger.made = snap.OHLCVCallsMade
	m.lastLedger.saved = snap.OHLCVCallsSaved

	m.CostSavingsPct.Set(snap.CostSavingsPct)

	switch breaker.State() {
	case StateClosed:
		m.BreakerState.Set(0)
	case StateHalfOpen:
		m.BreakerState.Set(1)
	case StateOpen:
		m.BreakerState.Set(2)
	}
	m.BreakerFailures.Set(float64(breaker.FailureCount()))
	m.FinalistCount.Set(float64(finalists))
	m.CycleDuration.Observe(cycleSeconds)
}
