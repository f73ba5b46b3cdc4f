package pipeline

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/curve"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/internal/sources"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Stage 1 — Triage
//
// Prunes cheap: only fields already present from discovery, zero network
// calls. The rubric is source-specific because each feed's presence means
// something different; a graduated token's age matters, a bonding token's
// curve progress matters, a trending token's presence IS the signal.
//
//	graduated   age <=1h +40 | <=6h +25 | <=12h +15
//	            mcap 50k-2M +20 | 10k-50k +15 | >2M +5
//	            liquidity >=50k +15 | >=10k +10 | >=1k +5
//	bonding     progress >=95 +50 | >=90 +35 | >=85 +25 | >=75 +15 | >=50 +10
//	            mcap 5k-500k +15 | (0,5k) +10
//	trending    presence +30
//	curve-det   presence +20
//	live-launch presence +20
//	cached      presence +15
//	any         valid address +5, clean symbol +3
//	            age <=60m +8 | <=360m +5 | <=1440m +2
//
// Pass thresholds: graduated 25, bonding 30, trending 30, other 20.
// Output capped at the top 35. A scoring panic keeps the candidate at a
// default 20 — at the cheapest stage a false positive costs one batch
// slot, a false negative costs the gem.

const (
	triageCap          = 35
	triageDefaultScore = 20
)

type Triage struct {
	ledger *resilience.CostLedger
	log    zerolog.Logger
}

func NewTriage(ledger *resilience.CostLedger, log zerolog.Logger) *Triage {
	return &Triage{
		ledger: ledger,
		log:    log.With().Str("component", "triage").Logger(),
	}
}

// Run scores and prunes. Deterministic: same input, same ranking.
func (t *Triage) Run(candidates []models.Candidate) []models.Candidate {
	kept := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		// Pre-graduation tokens carry their curve lifecycle band from here
		// on; the alert formatter renders it verbatim
		if c.BondingCurveProgressPct > 0 && c.GraduatedAt == nil {
			stage := curve.StageAnalysis(c.MarketCapUSD)
			c.CurveStage = &stage
		}

		score := t.safeScore(&c)
		c.DiscoveryPriorityScore = score
		c.AdvanceStage(models.StageTriaged)
		if score >= triageThreshold(c.Source) {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].DiscoveryPriorityScore > kept[b].DiscoveryPriorityScore
	})
	if len(kept) > triageCap {
		kept = kept[:triageCap]
	}

	t.ledger.AddStageCount("stage1_triage", len(kept))
	t.log.Debug().Int("in", len(candidates)).Int("out", len(kept)).Msg("triage complete")
	return kept
}

// safeScore never lets one malformed candidate take the stage down.
func (t *Triage) safeScore(c *models.Candidate) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Warn().Interface("panic", r).Str("address", c.Address).
				Msg("triage scoring panicked, keeping candidate at default score")
			score = triageDefaultScore
		}
	}()
	return triageScore(c)
}

func triageScore(c *models.Candidate) float64 {
	score := 0.0

	switch c.Source {
	case models.SourceGraduated:
		switch {
		case c.HoursSinceGraduation <= 1:
			score += 40
		case c.HoursSinceGraduation <= 6:
			score += 25
		case c.HoursSinceGraduation <= 12:
			score += 15
		}
		switch {
		case c.MarketCapUSD >= 50_000 && c.MarketCapUSD <= 2_000_000:
			score += 20
		case c.MarketCapUSD >= 10_000 && c.MarketCapUSD < 50_000:
			score += 15
		case c.MarketCapUSD > 2_000_000:
			score += 5
		}
		switch {
		case c.LiquidityUSD >= 50_000:
			score += 15
		case c.LiquidityUSD >= 10_000:
			score += 10
		case c.LiquidityUSD >= 1_000:
			score += 5
		}

	case models.SourceBonding:
		switch {
		case c.BondingCurveProgressPct >= 95:
			score += 50
		case c.BondingCurveProgressPct >= 90:
			score += 35
		case c.BondingCurveProgressPct >= 85:
			score += 25
		case c.BondingCurveProgressPct >= 75:
			score += 15
		case c.BondingCurveProgressPct >= 50:
			score += 10
		}
		switch {
		case c.MarketCapUSD >= 5_000 && c.MarketCapUSD <= 500_000:
			score += 15
		case c.MarketCapUSD > 0 && c.MarketCapUSD < 5_000:
			score += 10
		}

	case models.SourceTrending:
		score += 30

	case models.SourceCurveDetector:
		score += 20

	case models.SourceLiveLaunch:
		score += 20

	case models.SourceCachedCurve:
		score += 15
	}

	if sources.ValidAddress(c.Address) {
		score += 5
	}
	if sources.CleanSymbol(c.Symbol) {
		score += 3
	}

	age := effectiveAgeMinutes(c)
	switch {
	case age > 0 && age <= 60:
		score += 8
	case age > 0 && age <= 360:
		score += 5
	case age > 0 && age <= 1440:
		score += 2
	}

	return score
}

func triageThreshold(src models.Source) float64 {
	switch src {
	case models.SourceGraduated:
		return 25
	case models.SourceBonding, models.SourceTrending:
		return 30
	default:
		return 20
	}
}

func effectiveAgeMinutes(c *models.Candidate) float64 {
	if c.AgeMinutes > 0 {
		return c.AgeMinutes
	}
	if c.GraduatedAt != nil {
		return c.HoursSinceGraduation * 60
	}
	return 0
}
