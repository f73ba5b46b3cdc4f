package scoring

import (
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Metadata Composite
//
// Blends enrichment-metadata sub-scores into one graded composite:
//
//	social     0.15   links/socials present on the token profile
//	trading    0.35   volume acceleration + trade frequency + wallet growth
//	price      0.25   momentum quality
//	liquidity  0.25   depth relative to cap and turnover
//
// Attached to the deep-analysis breakdown; the grade is what the alert
// formatter prints.

type metadataWeights struct {
	social, trading, price, liquidity float64
}

var defaultWeights = metadataWeights{social: 0.15, trading: 0.35, price: 0.25, liquidity: 0.25}

// ComputeMetadata derives the composite from candidate fields. All
// sub-scores are 0-100.
func ComputeMetadata(c *models.Candidate, velocity VelocityResult) *models.MetadataAnalysis {
	social := socialScore(c)
	trading := tradingScore(c, velocity)
	price := priceScore(c)
	liquidity := liquidityScore(c)

	composite := social*defaultWeights.social +
		trading*defaultWeights.trading +
		price*defaultWeights.price +
		liquidity*defaultWeights.liquidity

	ma := &models.MetadataAnalysis{
		CompositeScore: composite,
		Components: map[string]float64{
			"social":    social,
			"trading":   trading,
			"price":     price,
			"liquidity": liquidity,
		},
		Grade: metadataGrade(composite),
	}

	if trading >= 70 {
		ma.KeyStrengths = append(ma.KeyStrengths, "strong trading activity")
	}
	if liquidity >= 70 {
		ma.KeyStrengths = append(ma.KeyStrengths, "healthy liquidity depth")
	}
	if price >= 70 {
		ma.KeyStrengths = append(ma.KeyStrengths, "sustained price momentum")
	}
	if liquidity < 30 {
		ma.KeyRisks = append(ma.KeyRisks, "shallow liquidity")
	}
	if social < 20 {
		ma.KeyRisks = append(ma.KeyRisks, "no social presence")
	}
	if trading < 30 {
		ma.KeyRisks = append(ma.KeyRisks, "weak trading activity")
	}
	return ma
}

// socialScore is a coarse proxy: enriched metadata with a clean symbol and
// name suggests a maintained profile. Dedicated social feeds are not part
// of the funnel's paid budget.
func socialScore(c *models.Candidate) float64 {
	score := 0.0
	if c.Enriched {
		score += 40
	}
	if c.Symbol != "" && c.Symbol != "UNKNOWN" {
		score += 30
	}
	if c.Name != "" && c.Name != c.Symbol {
		score += 30
	}
	return score
}

func tradingScore(c *models.Candidate, velocity VelocityResult) float64 {
	accel := velocity.VolumeAccel / maxVolumeAccelBonus * 100
	freq := 0.0
	switch {
	case c.Trades24h >= 2000:
		freq = 100
	case c.Trades24h >= 1000:
		freq = 75
	case c.Trades24h >= 300:
		freq = 50
	case c.Trades24h >= 50:
		freq = 25
	}
	growth := 0.0
	switch {
	case c.UniqueTraders24 >= 500:
		growth = 100
	case c.UniqueTraders24 >= 200:
		growth = 70
	case c.UniqueTraders24 >= 50:
		growth = 40
	case c.UniqueTraders24 > 0:
		growth = 15
	}
	return accel*0.4 + freq*0.3 + growth*0.3
}

func priceScore(c *models.Candidate) float64 {
	score := 0.0
	if c.PriceChange1h > 0 {
		score += 30
	}
	if c.PriceChange6h > 0 {
		score += 20
	}
	if c.PriceChange24h > 0 {
		score += 20
	}
	// Parabolic single-window moves score worse than stacked steady gains
	if c.PriceChange1h > 0 && c.PriceChange6h > 0 && c.PriceChange24h > 0 {
		score += 30
	} else if c.PriceChange5m > 100 {
		score -= 20
	}
	if score < 0 {
		score = 0
	}
	return score
}

func liquidityScore(c *models.Candidate) float64 {
	score := 0.0
	switch {
	case c.LiquidityUSD >= 100_000:
		score += 50
	case c.LiquidityUSD >= 50_000:
		score += 40
	case c.LiquidityUSD >= 10_000:
		score += 25
	case c.LiquidityUSD > 0:
		score += 10
	}
	// Healthy band: liquidity 5-40% of market cap
	if c.LiquidityMcapRatio >= 0.05 && c.LiquidityMcapRatio <= 0.40 {
		score += 30
	}
	// Turnover between 0.5x and 10x daily is active without being washy
	if c.DailyTurnoverRatio >= 0.5 && c.DailyTurnoverRatio <= 10 {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

func metadataGrade(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
