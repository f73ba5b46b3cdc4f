package scoring

import (
	"fmt"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Interaction Analysis
//
// Linear scoring adds factor bonuses independently, which is exactly wrong
// for the cases that matter: massive volume against a $5k liquidity pool is
// not "good volume plus thin liquidity", it is a manipulation fingerprint
// and the whole score should collapse. This pass inspects factor PAIRS and
// emits typed findings the formatter renders verbatim:
//
//	dangers         multiplicative penalties (up to -85%)
//	amplifications  multiplicative boosts (factor pairs that confirm each other)
//	contradictions  signals that disagree; mild penalty, flagged for the reader
//
// The corrected score applies every impact multiplicatively to the linear
// score, so one confirmed danger can outweigh any number of small bonuses.

// VLR thresholds: volume/liquidity above 10x on a thin pool is the classic
// wash-trade shape.
const (
	vlrManipulation    = 10.0
	thinLiquidityUSD   = 20_000
	whaleDominancePct  = 40.0
	poorSecurityScore  = 40.0
	goodSecurityScore  = 70.0
	volumeSurgeFloor   = 500_000
)

// AnalyzeInteractions inspects a candidate (plus whatever deep-analysis
// results exist) and returns the three finding lists.
func AnalyzeInteractions(c *models.Candidate, holders *models.HolderConcentration, velocity VelocityResult) models.InteractionAnalysis {
	var out models.InteractionAnalysis

	// ─── Dangers ─────────────────────────────────────────────────────

	if c.LiquidityUSD > 0 && c.LiquidityUSD < thinLiquidityUSD {
		vlr := c.Volume24h / c.LiquidityUSD
		if vlr >= vlrManipulation {
			out.Dangers = append(out.Dangers, models.Interaction{
				Explanation: fmt.Sprintf("volume %.0fx liquidity on a thin pool — manipulation pattern", vlr),
				ImpactPct:   -85,
				Factors:     []string{"volume_liquidity_ratio", "low_liquidity"},
			})
		}
	}

	if holders != nil && holders.WhalePercentage >= whaleDominancePct && c.SecurityScore > 0 && c.SecurityScore < poorSecurityScore {
		out.Dangers = append(out.Dangers, models.Interaction{
			Explanation: fmt.Sprintf("whales hold %.0f%% with security score %.0f — exit-risk concentration", holders.WhalePercentage, c.SecurityScore),
			ImpactPct:   -12,
			Factors:     []string{"whale_dominance", "poor_security"},
		})
	}

	if holders != nil && holders.ConcentrationLevel == "CRITICAL" && c.LiquidityUSD < thinLiquidityUSD {
		out.Dangers = append(out.Dangers, models.Interaction{
			Explanation: "critical holder concentration against thin liquidity — single seller can drain the pool",
			ImpactPct:   -25,
			Factors:     []string{"holder_concentration", "low_liquidity"},
		})
	}

	// ─── Amplifications ──────────────────────────────────────────────

	if c.UniqueTraders24 >= 300 && velocity.VolumeAccel >= 0.15 {
		out.Amplifications = append(out.Amplifications, models.Interaction{
			Explanation: "broad trader base riding a volume surge — organic demand confirmation",
			ImpactPct:   15,
			Factors:     []string{"smart_money", "volume_surge"},
		})
	}

	if c.Enriched && c.SecurityScore >= goodSecurityScore {
		out.Amplifications = append(out.Amplifications, models.Interaction{
			Explanation: "validated across platforms with a clean security profile",
			ImpactPct:   13,
			Factors:     []string{"multi_platform", "security"},
		})
	}

	if c.IsFreshGraduate && velocity.MomentumCascade >= 0.15 {
		out.Amplifications = append(out.Amplifications, models.Interaction{
			Explanation: "fresh graduate with stacked momentum — the early-gem profile",
			ImpactPct:   10,
			Factors:     []string{"fresh_graduate", "momentum_cascade"},
		})
	}

	// ─── Contradictions ──────────────────────────────────────────────

	if c.Volume24h >= volumeSurgeFloor && !c.Enriched {
		out.Contradictions = append(out.Contradictions, models.Interaction{
			Explanation: "heavy reported volume but no cross-platform confirmation",
			ImpactPct:   -5,
			Factors:     []string{"high_volume", "limited_platforms"},
		})
	}

	if c.PriceChange24h > 50 && c.Trades24h < 100 {
		out.Contradictions = append(out.Contradictions, models.Interaction{
			Explanation: "large price move on very few trades — unstable pricing",
			ImpactPct:   -5,
			Factors:     []string{"price_spike", "thin_trading"},
		})
	}

	return out
}

// ApplyInteractions folds every impact into the linear score
// multiplicatively and returns the corrected score.
func ApplyInteractions(linear float64, ia models.InteractionAnalysis) float64 {
	corrected := linear
	for _, group := range [][]models.Interaction{ia.Dangers, ia.Amplifications, ia.Contradictions} {
		for _, it := range group {
			corrected *= 1 + it.ImpactPct/100
		}
	}
	if corrected < 0 {
		corrected = 0
	}
	if corrected > 100 {
		corrected = 100
	}
	return corrected
}
