package scoring

import (
	"testing"
)

func TestAnalyzeHolders_NoData(t *testing.T) {
	if got := AnalyzeHolders(nil); got != nil {
		t.Errorf("expected nil for no data, got %+v", got)
	}
	if got := AnalyzeHolders([]float64{0, 0}); got != nil {
		t.Errorf("expected nil for all-zero data, got %+v", got)
	}
}

func TestAnalyzeHolders_UniformDistribution(t *testing.T) {
	// 50 equal holders: minimal inequality, no whales
	pcts := make([]float64, 50)
	for i := range pcts {
		pcts[i] = 2.0
	}

	hc := AnalyzeHolders(pcts)
	if hc == nil {
		t.Fatal("expected analysis")
	}
	if hc.Gini > 0.05 {
		t.Errorf("uniform distribution gini = %v, want ~0", hc.Gini)
	}
	if hc.ConcentrationLevel == "CRITICAL" || hc.ConcentrationLevel == "HIGH" {
		t.Errorf("uniform distribution should not be %s", hc.ConcentrationLevel)
	}
}

func TestAnalyzeHolders_SingleWhale(t *testing.T) {
	// One holder with 80%, dust for the rest
	pcts := []float64{80, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}

	hc := AnalyzeHolders(pcts)
	if hc == nil {
		t.Fatal("expected analysis")
	}
	if hc.Gini < 0.5 {
		t.Errorf("whale-dominated gini = %v, want > 0.5", hc.Gini)
	}
	if hc.ConcentrationLevel != "CRITICAL" && hc.ConcentrationLevel != "HIGH" {
		t.Errorf("whale-dominated level = %s, want HIGH or CRITICAL", hc.ConcentrationLevel)
	}
	if hc.WhaleCount != 11 {
		t.Errorf("whale count = %d, want 11 (all at or above 2%%)", hc.WhaleCount)
	}
	if len(hc.RiskFactors) == 0 {
		t.Error("expected risk factors for whale dominance")
	}
}

func TestAnalyzeHolders_ScoreBounds(t *testing.T) {
	tests := [][]float64{
		{100},
		{50, 50},
		{10, 10, 10, 10, 10, 10, 10, 10, 10, 10},
		{0.5, 0.5, 0.5, 0.5},
	}
	for _, pcts := range tests {
		hc := AnalyzeHolders(pcts)
		if hc == nil {
			continue
		}
		if hc.ConcentrationScore < 0 || hc.ConcentrationScore > 10 {
			t.Errorf("concentration score %v outside [0,10] for %v", hc.ConcentrationScore, pcts)
		}
		if hc.Gini < 0 || hc.Gini > 1 {
			t.Errorf("gini %v outside [0,1] for %v", hc.Gini, pcts)
		}
	}
}

func TestGiniOrdering(t *testing.T) {
	// More concentration must mean a higher gini
	uniform := AnalyzeHolders([]float64{5, 5, 5, 5, 5, 5, 5, 5})
	skewed := AnalyzeHolders([]float64{65, 3, 3, 3, 3, 3})
	if uniform.Gini >= skewed.Gini {
		t.Errorf("uniform gini %v should be below skewed gini %v", uniform.Gini, skewed.Gini)
	}
}
