package scoring

import (
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Age-Aware Confidence
//
// Token age drives the confidence model, not raw data coverage. A token
// eight minutes old cannot have a 6h volume window — punishing it for that
// would systematically bury the earliest (most profitable) detections.
// Instead, coverage is judged against what a token of that age could
// plausibly have:
//
//	age <= 30 min   ULTRA_EARLY   momentum present -> EARLY_DETECTION (threshold x0.95)
//	                              long-term data only -> LOW (x1.10)
//	                              limited but normal -> MEDIUM (x1.00)
//	                              nothing at all -> LOW (x1.10)
//	30 min - 2 h    EARLY         >=50% HIGH, >=33% MEDIUM, else LOW
//	2 - 12 h        ESTABLISHED   >=67% HIGH, >=50% MEDIUM, else LOW
//	> 12 h          MATURE        >=83% HIGH, >=67% MEDIUM, >=50% LOW, else VERY_LOW (x1.25)
//
// "Meaningful momentum" requires a short-timeframe signal (5m or 15m
// present) AND at least two distinct timeframes with data. A lone 5m
// datapoint does not qualify.

// timeframeCount is the denominator for coverage: the six standard windows.
const timeframeCount = 6

// ConfidenceMultiplier is applied to the final score per confidence level.
func ConfidenceMultiplier(level models.ConfidenceLevel) float64 {
	switch level {
	case models.ConfidenceEarlyDetection:
		return 1.05
	case models.ConfidenceHigh:
		return 1.02
	case models.ConfidenceMedium:
		return 0.98
	case models.ConfidenceLow:
		return 0.95
	case models.ConfidenceVeryLow:
		return 0.90
	default: // ERROR
		return 0.85
	}
}

// AssessConfidence classifies a candidate's velocity confidence from its
// age and which timeframe windows carry data.
func AssessConfidence(c *models.Candidate) models.VelocityConfidence {
	ageMin := c.AgeMinutes

	vols := []float64{c.Volume5m, c.Volume15m, c.Volume30m, c.Volume1h, c.Volume6h, c.Volume24h}
	present := 0
	for _, v := range vols {
		if v > 0 {
			present++
		}
	}
	coverage := float64(present) / timeframeCount * 100

	hasShort := c.Volume5m > 0 || c.Volume15m > 0
	hasLong := c.Volume6h > 0 || c.Volume24h > 0
	meaningfulMomentum := hasShort && present >= 2

	vc := models.VelocityConfidence{
		CoveragePercentage: coverage,
		AgeMinutes:         ageMin,
	}

	switch {
	case ageMin <= 30:
		vc.AgeCategory = models.AgeUltraEarly
		switch {
		case meaningfulMomentum:
			vc.Level = models.ConfidenceEarlyDetection
			vc.ThresholdAdjustment = 0.95
			vc.ConfidenceScore = 0.90
			vc.Reason = "ultra-early with live momentum across timeframes"
		case hasLong && !hasShort:
			// Aged data for a supposedly new token is a red flag, not a bonus
			vc.Level = models.ConfidenceLow
			vc.ThresholdAdjustment = 1.10
			vc.ConfidenceScore = 0.40
			vc.Reason = "ultra-early but only long-term windows populated"
		case present >= 1:
			vc.Level = models.ConfidenceMedium
			vc.ThresholdAdjustment = 1.00
			vc.ConfidenceScore = 0.65
			vc.Reason = "limited data, normal for token age"
		default:
			vc.Level = models.ConfidenceLow
			vc.ThresholdAdjustment = 1.10
			vc.ConfidenceScore = 0.35
			vc.Reason = "no timeframe data available"
		}

	case ageMin <= 120:
		vc.AgeCategory = models.AgeEarly
		applyCoverageBands(&vc, coverage, 50, 33)

	case ageMin <= 720:
		vc.AgeCategory = models.AgeEstablished
		applyCoverageBands(&vc, coverage, 67, 50)

	default:
		vc.AgeCategory = models.AgeMature
		switch {
		case coverage >= 83:
			vc.Level = models.ConfidenceHigh
			vc.ThresholdAdjustment = 1.00
			vc.ConfidenceScore = 0.85
		case coverage >= 67:
			vc.Level = models.ConfidenceMedium
			vc.ThresholdAdjustment = 1.00
			vc.ConfidenceScore = 0.65
		case coverage >= 50:
			vc.Level = models.ConfidenceLow
			vc.ThresholdAdjustment = 1.10
			vc.ConfidenceScore = 0.45
		default:
			// A mature token with this little data is unanalyzable
			vc.Level = models.ConfidenceVeryLow
			vc.ThresholdAdjustment = 1.25
			vc.ConfidenceScore = 0.20
			vc.Reason = "mature token with sparse data"
		}
	}

	return vc
}

// applyCoverageBands fills level/adjustment for the two-band age categories.
func applyCoverageBands(vc *models.VelocityConfidence, coverage, highBand, mediumBand float64) {
	switch {
	case coverage >= highBand:
		vc.Level = models.ConfidenceHigh
		vc.ThresholdAdjustment = 1.00
		vc.ConfidenceScore = 0.85
	case coverage >= mediumBand:
		vc.Level = models.ConfidenceMedium
		vc.ThresholdAdjustment = 1.00
		vc.ConfidenceScore = 0.65
	default:
		vc.Level = models.ConfidenceLow
		vc.ThresholdAdjustment = 1.10
		vc.ConfidenceScore = 0.45
	}
}
