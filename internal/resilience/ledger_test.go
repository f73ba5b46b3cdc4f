package resilience

import (
	"sync"
	"testing"
)

func TestLedger_SavingsPct(t *testing.T) {
	tests := []struct {
		name        string
		made, saved int
		want        float64
	}{
		{"nothing recorded", 0, 0, 0},
		{"all saved", 0, 30, 1},
		{"all spent", 20, 0, 0},
		{"funnel target", 30, 70, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewCostLedger()
			l.AddOHLCVCallsMade(tt.made)
			l.AddOHLCVCallsSaved(tt.saved)

			snap := l.Snapshot()
			if snap.CostSavingsPct != tt.want {
				t.Errorf("savings = %v, want %v", snap.CostSavingsPct, tt.want)
			}
			if snap.CostSavingsPct < 0 || snap.CostSavingsPct > 1 {
				t.Errorf("savings %v outside [0,1]", snap.CostSavingsPct)
			}
		})
	}
}

func TestLedger_Delta(t *testing.T) {
	l := NewCostLedger()
	l.AddTokensProcessed(40)
	l.AddOHLCVCallsMade(10)
	before := l.Snapshot()

	l.AddTokensProcessed(60)
	l.AddOHLCVCallsMade(20)
	l.AddOHLCVCallsSaved(80)
	after := l.Snapshot()

	delta := Delta(before, after)
	if delta.TokensProcessed != 60 {
		t.Errorf("delta tokens = %d, want 60", delta.TokensProcessed)
	}
	if delta.OHLCVCallsMade != 20 {
		t.Errorf("delta made = %d, want 20", delta.OHLCVCallsMade)
	}
	if delta.CostSavingsPct != 0.8 {
		t.Errorf("delta savings = %v, want 0.8", delta.CostSavingsPct)
	}
}

func TestLedger_SnapshotIsolation(t *testing.T) {
	l := NewCostLedger()
	l.AddStageCount("stage1_triage", 30)

	snap := l.Snapshot()
	snap.StageCounts["stage1_triage"] = 999

	if l.Snapshot().StageCounts["stage1_triage"] != 30 {
		t.Error("mutating a snapshot must not affect the ledger")
	}
}

func TestLedger_ConcurrentIncrements(t *testing.T) {
	l := NewCostLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.AddOHLCVCallsMade(1)
			l.AddBasicScoring(2)
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	if snap.OHLCVCallsMade != 50 {
		t.Errorf("made = %d, want 50", snap.OHLCVCallsMade)
	}
	if snap.BasicScoringUses != 100 {
		t.Errorf("basic uses = %d, want 100", snap.BasicScoringUses)
	}
}
