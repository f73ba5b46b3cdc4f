package scoring

import (
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Scoring Kernel
//
// Two modes sharing one result shape:
//
//	basic velocity   no OHLCV; velocity composite expanded to 0-100.
//	                 Used by the enhanced filter and market validator.
//	enhanced         full section scoring + interaction correction +
//	                 age-aware confidence. Deep analysis only.
//
// Section caps:
//	early_platform_analysis  50
//	momentum_analysis        38
//	safety_validation        25
//	cross_platform_bonus     12
//
// The linear sum (max 125) is normalized to a 0-100 scale, corrected by
// interaction analysis, then adjusted by the confidence multiplier. The
// breakdown keeps both the flawed linear number and the corrected one so
// alerts can show why they disagree.

const (
	maxPlatformScore  = 50.0
	maxMomentumScore  = 38.0
	maxSafetyScore    = 25.0
	maxCrossBonus     = 12.0
	linearScaleFactor = 100.0 / (maxPlatformScore + maxMomentumScore + maxSafetyScore + maxCrossBonus)

	freshGraduateBonus  = 20.0
	recentGraduateBonus = 12.0
)

// Result pairs a final score with its full explanation.
type Result struct {
	FinalScore float64
	Breakdown  models.ScoringBreakdown
}

// ScoreBasic runs velocity-only scoring. Cheap, no deep-analysis inputs.
func ScoreBasic(c *models.Candidate) Result {
	velocity := ComputeVelocity(c)
	confidence := AssessConfidence(c)
	c.VelocityConfidence = &confidence

	final := velocity.Score * 100 * ConfidenceMultiplier(confidence.Level)
	final = clampScore(final)

	return Result{
		FinalScore: final,
		Breakdown: models.ScoringBreakdown{
			ScoringMode:   "basic_velocity",
			VelocityScore: velocity.Score,
			MomentumAnalysis: models.SectionScore{
				Score:    round1(velocity.Score * maxMomentumScore),
				MaxScore: maxMomentumScore,
				Signals:  velocity.Signals,
			},
			Confidence: &confidence,
			RiskAssessment: models.RiskAssessment{
				RiskLevel:       riskLevel(c, nil, nil),
				ConfidenceLevel: confidence.Level,
			},
		},
	}
}

// ScoreEnhanced runs the full interaction-aware scoring for a deep-analysis
// finalist. holderPercentages may be nil when the holder port had nothing.
func ScoreEnhanced(c *models.Candidate, holderPercentages []float64) Result {
	velocity := ComputeVelocity(c)
	confidence := AssessConfidence(c)
	c.VelocityConfidence = &confidence

	holders := AnalyzeHolders(holderPercentages)
	metadata := ComputeMetadata(c, velocity)

	platform := platformSection(c)
	momentum := models.SectionScore{
		Score:    round1(velocity.Score * maxMomentumScore),
		MaxScore: maxMomentumScore,
		Signals:  velocity.Signals,
	}
	safety := safetySection(c, holders)
	cross := crossPlatformSection(c, holders)

	linear := (platform.Score + momentum.Score + safety.Score + cross.Score) * linearScaleFactor

	interactions := AnalyzeInteractions(c, holders, velocity)
	corrected := ApplyInteractions(linear, interactions)

	final := clampScore(corrected * ConfidenceMultiplier(confidence.Level))

	breakdown := models.ScoringBreakdown{
		ScoringMode:           "enhanced_ohlcv",
		EarlyPlatformAnalysis: platform,
		MomentumAnalysis:      momentum,
		SafetyValidation:      safety,
		CrossPlatformBonus:    cross,
		VelocityScore:         velocity.Score,
		Interactions:          interactions,
		Confidence:            &confidence,
		HolderAnalysis:        holders,
		MetadataAnalysis:      metadata,
		RiskAssessment: models.RiskAssessment{
			RiskLevel:       riskLevel(c, holders, interactions.Dangers),
			ConfidenceLevel: confidence.Level,
			RiskFactors:     riskFactors(c, holders),
		},
		ScoreComparison: models.ScoreComparison{
			LinearScoreFlawed:         round1(linear),
			InteractionScoreCorrected: round1(corrected),
			MathematicalImprovement:   round1(corrected - linear),
		},
	}
	if c.IsFreshGraduate {
		breakdown.FreshGraduateBonus = freshGraduateBonus
	}

	return Result{FinalScore: final, Breakdown: breakdown}
}

// platformSection rewards where and how early the token was found.
func platformSection(c *models.Candidate) models.SectionScore {
	s := models.SectionScore{MaxScore: maxPlatformScore}

	switch {
	case c.IsFreshGraduate:
		s.Score += freshGraduateBonus
		s.Signals = append(s.Signals, "fresh_graduate")
	case c.IsRecentGraduate:
		s.Score += recentGraduateBonus
		s.Signals = append(s.Signals, "recent_graduate")
	case c.GraduatedAt != nil && c.HoursSinceGraduation <= 12:
		s.Score += 6
		s.Signals = append(s.Signals, "recent_graduation_window")
	}

	// Pre-graduation proximity: the closer to the curve top, the stronger
	// the launch signal
	switch {
	case c.BondingCurveProgressPct >= 95:
		s.Score += 18
		s.Signals = append(s.Signals, "graduation_imminent")
	case c.BondingCurveProgressPct >= 90:
		s.Score += 14
		s.Signals = append(s.Signals, "graduation_close")
	case c.BondingCurveProgressPct >= 85:
		s.Score += 10
		s.Signals = append(s.Signals, "graduation_approaching")
	case c.BondingCurveProgressPct >= 75:
		s.Score += 6
	}

	switch c.Source {
	case models.SourceTrending:
		s.Score += 10
		s.Signals = append(s.Signals, "trending_feed")
	case models.SourceCurveDetector, models.SourceLiveLaunch:
		s.Score += 8
		s.Signals = append(s.Signals, "onchain_detection")
	}

	// Carry a slice of the triage ranking forward so discovery quality
	// still matters at the end of the funnel
	prio := c.DiscoveryPriorityScore / 10
	if prio > 10 {
		prio = 10
	}
	s.Score += prio

	if s.Score > maxPlatformScore {
		s.Score = maxPlatformScore
	}
	s.Score = round1(s.Score)
	return s
}

func safetySection(c *models.Candidate, holders *models.HolderConcentration) models.SectionScore {
	s := models.SectionScore{MaxScore: maxSafetyScore}

	s.Score += c.SecurityScore / 100 * 12

	switch {
	case c.LiquidityUSD >= 50_000:
		s.Score += 6
		s.Signals = append(s.Signals, "deep_liquidity")
	case c.LiquidityUSD >= 10_000:
		s.Score += 4
	case c.LiquidityUSD >= 1_000:
		s.Score += 2
	}

	if holders != nil {
		s.Score += holders.ConcentrationScore * 0.7
		if holders.ConcentrationLevel == "LOW" {
			s.Signals = append(s.Signals, "well_distributed")
		}
	}

	if s.Score > maxSafetyScore {
		s.Score = maxSafetyScore
	}
	s.Score = round1(s.Score)
	return s
}

func crossPlatformSection(c *models.Candidate, holders *models.HolderConcentration) models.SectionScore {
	s := models.SectionScore{MaxScore: maxCrossBonus}

	if c.Enriched {
		s.Score += 5
		s.Signals = append(s.Signals, "metadata_confirmed")
	}
	if c.DeepAnalysisPhase && c.OHLCVError == "" {
		s.Score += 4
		s.Signals = append(s.Signals, "ohlcv_confirmed")
	}
	if holders != nil {
		s.Score += 3
		s.Signals = append(s.Signals, "holder_data_present")
	}

	if s.Score > maxCrossBonus {
		s.Score = maxCrossBonus
	}
	return s
}

// riskLevel condenses the downside picture into one label.
func riskLevel(c *models.Candidate, holders *models.HolderConcentration, dangers []models.Interaction) string {
	for _, d := range dangers {
		if d.ImpactPct <= -50 {
			return "CRITICAL"
		}
	}
	if c.LiquidityUSD > 0 && c.LiquidityUSD < 5_000 {
		return "CRITICAL"
	}
	if holders != nil && holders.ConcentrationLevel == "CRITICAL" {
		return "CRITICAL"
	}
	if c.LiquidityUSD < 20_000 {
		return "HIGH"
	}
	if c.BondingCurveProgressPct > 0 && c.GraduatedAt == nil {
		// Pre-graduation tokens can still fail to graduate
		return "HIGH"
	}
	if holders != nil && holders.ConcentrationLevel == "HIGH" {
		return "HIGH"
	}
	if c.LiquidityUSD < 100_000 {
		return "MEDIUM"
	}
	return "LOW"
}

func riskFactors(c *models.Candidate, holders *models.HolderConcentration) []string {
	var factors []string
	if c.LiquidityUSD < 20_000 {
		factors = append(factors, "thin liquidity")
	}
	if c.BondingCurveProgressPct > 0 && c.GraduatedAt == nil {
		factors = append(factors, "pre-graduation token")
	}
	if c.SecurityScore > 0 && c.SecurityScore < 40 {
		factors = append(factors, "weak security profile")
	}
	if holders != nil {
		factors = append(factors, holders.RiskFactors...)
	}
	return factors
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return round1(v)
}

func round1(v float64) float64 {
	if v >= 0 {
		return float64(int(v*10+0.5)) / 10
	}
	return float64(int(v*10-0.5)) / 10
}
