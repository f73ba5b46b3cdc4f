package scoring

import (
	"testing"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

func TestAssessConfidence_UltraEarlyMomentum(t *testing.T) {
	// Eight minutes old with live short-window data across two timeframes:
	// the early-detection profile
	c := &models.Candidate{
		AgeMinutes: 8,
		Volume5m:   1500,
		Volume15m:  4000,
	}

	vc := AssessConfidence(c)

	if vc.Level != models.ConfidenceEarlyDetection {
		t.Fatalf("expected EARLY_DETECTION, got %s", vc.Level)
	}
	if vc.ThresholdAdjustment >= 1.0 {
		t.Errorf("early detection must lower the threshold, got %v", vc.ThresholdAdjustment)
	}
	if vc.AgeCategory != models.AgeUltraEarly {
		t.Errorf("expected ULTRA_EARLY age category, got %s", vc.AgeCategory)
	}
}

func TestAssessConfidence_SingleDatapointIsNotMomentum(t *testing.T) {
	// A lone 5m datapoint does not qualify as meaningful momentum: the
	// token is limited-but-normal for its age
	c := &models.Candidate{
		AgeMinutes: 8,
		Volume5m:   900,
	}

	vc := AssessConfidence(c)

	if vc.Level != models.ConfidenceMedium {
		t.Fatalf("expected MEDIUM for single-datapoint ultra-early token, got %s", vc.Level)
	}
	if vc.ThresholdAdjustment != 1.0 {
		t.Errorf("expected neutral threshold adjustment, got %v", vc.ThresholdAdjustment)
	}
}

func TestAssessConfidence_UltraEarlyLongTermOnly(t *testing.T) {
	// Long-window data on a supposedly brand-new token is suspicious
	c := &models.Candidate{
		AgeMinutes: 20,
		Volume6h:   50_000,
		Volume24h:  120_000,
	}

	vc := AssessConfidence(c)

	if vc.Level != models.ConfidenceLow {
		t.Fatalf("expected LOW, got %s", vc.Level)
	}
	if vc.ThresholdAdjustment != 1.10 {
		t.Errorf("expected 1.10 penalty, got %v", vc.ThresholdAdjustment)
	}
}

func TestAssessConfidence_CoverageBands(t *testing.T) {
	tests := []struct {
		name       string
		ageMinutes float64
		volumes    [6]float64 // 5m, 15m, 30m, 1h, 6h, 24h
		wantLevel  models.ConfidenceLevel
		wantCat    models.AgeCategory
	}{
		{
			name:       "early token half coverage is HIGH",
			ageMinutes: 90,
			volumes:    [6]float64{100, 200, 300, 0, 0, 0},
			wantLevel:  models.ConfidenceHigh,
			wantCat:    models.AgeEarly,
		},
		{
			name:       "early token third coverage is MEDIUM",
			ageMinutes: 90,
			volumes:    [6]float64{100, 200, 0, 0, 0, 0},
			wantLevel:  models.ConfidenceMedium,
			wantCat:    models.AgeEarly,
		},
		{
			name:       "established token at four of six windows (66.7%) is below the 67% HIGH band",
			ageMinutes: 300,
			volumes:    [6]float64{100, 200, 300, 400, 0, 0},
			wantLevel:  models.ConfidenceMedium,
			wantCat:    models.AgeEstablished,
		},
		{
			name:       "established token half coverage is MEDIUM",
			ageMinutes: 300,
			volumes:    [6]float64{100, 200, 300, 0, 0, 0},
			wantLevel:  models.ConfidenceMedium,
			wantCat:    models.AgeEstablished,
		},
		{
			name:       "mature token full coverage is HIGH",
			ageMinutes: 2000,
			volumes:    [6]float64{100, 200, 300, 400, 500, 600},
			wantLevel:  models.ConfidenceHigh,
			wantCat:    models.AgeMature,
		},
		{
			name:       "mature token sparse data is VERY_LOW",
			ageMinutes: 2000,
			volumes:    [6]float64{100, 200, 0, 0, 0, 0},
			wantLevel:  models.ConfidenceVeryLow,
			wantCat:    models.AgeMature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Candidate{
				AgeMinutes: tt.ageMinutes,
				Volume5m:   tt.volumes[0],
				Volume15m:  tt.volumes[1],
				Volume30m:  tt.volumes[2],
				Volume1h:   tt.volumes[3],
				Volume6h:   tt.volumes[4],
				Volume24h:  tt.volumes[5],
			}
			vc := AssessConfidence(c)
			if vc.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", vc.Level, tt.wantLevel)
			}
			if vc.AgeCategory != tt.wantCat {
				t.Errorf("age category = %s, want %s", vc.AgeCategory, tt.wantCat)
			}
		})
	}
}

func TestAssessConfidence_VeryLowPenalty(t *testing.T) {
	c := &models.Candidate{AgeMinutes: 5000, Volume5m: 100}
	vc := AssessConfidence(c)
	if vc.Level != models.ConfidenceVeryLow {
		t.Fatalf("expected VERY_LOW, got %s", vc.Level)
	}
	if vc.ThresholdAdjustment != 1.25 {
		t.Errorf("expected 1.25 penalty, got %v", vc.ThresholdAdjustment)
	}
}

func TestConfidenceMultiplier(t *testing.T) {
	tests := []struct {
		level models.ConfidenceLevel
		want  float64
	}{
		{models.ConfidenceEarlyDetection, 1.05},
		{models.ConfidenceHigh, 1.02},
		{models.ConfidenceMedium, 0.98},
		{models.ConfidenceLow, 0.95},
		{models.ConfidenceVeryLow, 0.90},
		{models.ConfidenceError, 0.85},
	}
	for _, tt := range tests {
		if got := ConfidenceMultiplier(tt.level); got != tt.want {
			t.Errorf("ConfidenceMultiplier(%s) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
