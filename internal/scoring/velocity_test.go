package scoring

import (
	"testing"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

func TestProjectionBonus(t *testing.T) {
	tests := []struct {
		name     string
		shortVol float64
		factor   float64
		longVol  float64
		want     float64
	}{
		{"no data", 0, 12, 1000, 0},
		{"flat run rate", 100, 12, 1200, 0},
		{"1.5x projection", 150, 12, 1200, 0.05},
		{"2x projection", 200, 12, 1200, 0.10},
		{"3x projection", 300, 12, 1200, 0.15},
		{"zero long window", 300, 12, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := projectionBonus(tt.shortVol, tt.factor, tt.longVol); got != tt.want {
				t.Errorf("projectionBonus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeVelocity_Caps(t *testing.T) {
	// A candidate maxed on every axis must stay within the per-family
	// caps and the 1.0 composite ceiling
	c := &models.Candidate{
		Volume5m: 10_000, Volume1h: 20_000, Volume6h: 40_000, Volume24h: 80_000,
		PriceChange5m: 50, PriceChange15m: 60, PriceChange30m: 70, PriceChange1h: 80,
		Trades5m: 500, Trades1h: 5000, UniqueTraders24: 1000,
	}

	res := ComputeVelocity(c)

	if res.VolumeAccel > maxVolumeAccelBonus {
		t.Errorf("volume accel %v exceeds cap %v", res.VolumeAccel, maxVolumeAccelBonus)
	}
	if res.MomentumCascade > maxMomentumBonus {
		t.Errorf("momentum %v exceeds cap %v", res.MomentumCascade, maxMomentumBonus)
	}
	if res.ActivitySurge > maxActivityBonus {
		t.Errorf("activity %v exceeds cap %v", res.ActivitySurge, maxActivityBonus)
	}
	if res.Score > 1.0 {
		t.Errorf("composite %v exceeds 1.0", res.Score)
	}
	if res.Score < 0.9 {
		t.Errorf("fully loaded candidate should score near 1.0, got %v", res.Score)
	}
}

func TestComputeVelocity_ConsistencyBonus(t *testing.T) {
	// Two accelerating windows earn the consistency bonus
	c := &models.Candidate{
		Volume5m: 300, Volume1h: 1200, // 3x projection
		Volume6h: 8000, Volume24h: 16000, // 2x projection; 1h*6 vs 6h is 0.9x, no bonus
	}
	res := ComputeVelocity(c)

	if res.AcceleratingTFs != 2 {
		t.Fatalf("expected 2 accelerating timeframes, got %d", res.AcceleratingTFs)
	}
	// 0.15 + 0.10 + 0.05 consistency
	if res.VolumeAccel != 0.30 {
		t.Errorf("volume accel = %v, want 0.30", res.VolumeAccel)
	}
}

func TestComputeVelocity_EmptyCandidate(t *testing.T) {
	res := ComputeVelocity(&models.Candidate{})
	if res.Score != 0 {
		t.Errorf("empty candidate should score 0, got %v", res.Score)
	}
}

func TestComputeVelocity_Deterministic(t *testing.T) {
	c := &models.Candidate{
		Volume5m: 500, Volume1h: 2000, Volume24h: 50_000,
		PriceChange5m: 7, Trades5m: 25, UniqueTraders24: 150,
	}
	first := ComputeVelocity(c)
	second := ComputeVelocity(c)
	if first.Score != second.Score {
		t.Errorf("velocity must be deterministic: %v vs %v", first.Score, second.Score)
	}
}
