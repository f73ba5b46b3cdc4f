package resilience

import (
	"sync"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Cost Ledger
//
// Process-lifetime counters of what the progressive funnel spent and what
// it avoided spending. The headline number is the OHLCV savings rate:
// every token that was pruned before deep analysis is an OHLCV batch the
// detector never paid for.
//
//	cost_savings = saved / (saved + made)
//
// Counters only ever increase. Snapshots are cheap copies taken per cycle.
type CostLedger struct {
	mu sync.Mutex

	tokensProcessed     int64
	basicScoringUses    int64
	enhancedScoringUses int64
	ohlcvCallsMade      int64
	ohlcvCallsSaved     int64
	stageCounts         map[string]int64
}

func NewCostLedger() *CostLedger {
	return &CostLedger{stageCounts: make(map[string]int64)}
}

func (l *CostLedger) AddTokensProcessed(n int) {
	l.mu.Lock()
	l.tokensProcessed += int64(n)
	l.mu.Unlock()
}

func (l *CostLedger) AddBasicScoring(n int) {
	l.mu.Lock()
	l.basicScoringUses += int64(n)
	l.mu.Unlock()
}

func (l *CostLedger) AddEnhancedScoring(n int) {
	l.mu.Lock()
	l.enhancedScoringUses += int64(n)
	l.mu.Unlock()
}

func (l *CostLedger) AddOHLCVCallsMade(n int) {
	l.mu.Lock()
	l.ohlcvCallsMade += int64(n)
	l.mu.Unlock()
}

// AddOHLCVCallsSaved records calls the funnel pruned away: tokens dropped
// before deep analysis count as their would-have-been OHLCV fetches.
func (l *CostLedger) AddOHLCVCallsSaved(n int) {
	l.mu.Lock()
	l.ohlcvCallsSaved += int64(n)
	l.mu.Unlock()
}

func (l *CostLedger) AddStageCount(stage string, n int) {
	l.mu.Lock()
	l.stageCounts[stage] += int64(n)
	l.mu.Unlock()
}

// Snapshot returns an immutable copy of every counter.
func (l *CostLedger) Snapshot() models.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[string]int64, len(l.stageCounts))
	for k, v := range l.stageCounts {
		counts[k] = v
	}
	return models.LedgerSnapshot{
		TokensProcessed:     l.tokensProcessed,
		BasicScoringUses:    l.basicScoringUses,
		EnhancedScoringUses: l.enhancedScoringUses,
		OHLCVCallsMade:      l.ohlcvCallsMade,
		OHLCVCallsSaved:     l.ohlcvCallsSaved,
		StageCounts:         counts,
		CostSavingsPct:      savingsPct(l.ohlcvCallsSaved, l.ohlcvCallsMade),
	}
}

// Delta computes the per-cycle difference between two snapshots.
func Delta(before, after models.LedgerSnapshot) models.LedgerSnapshot {
	saved := after.OHLCVCallsSaved - before.OHLCVCallsSaved
	made := after.OHLCVCallsMade - before.OHLCVCallsMade
	return models.LedgerSnapshot{
		TokensProcessed:     after.TokensProcessed - before.TokensProcessed,
		BasicScoringUses:    after.BasicScoringUses - before.BasicScoringUses,
		EnhancedScoringUses: after.EnhancedScoringUses - before.EnhancedScoringUses,
		OHLCVCallsMade:      made,
		OHLCVCallsSaved:     saved,
		CostSavingsPct:      savingsPct(saved, made),
	}
}

func savingsPct(saved, made int64) float64 {
	total := saved + made
	if total == 0 {
		return 0
	}
	return float64(saved) / float64(total)
}
