package pipeline

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/internal/scoring"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Stage 2 — Enhanced Filter
//
// One batch metadata call covers every survivor, then enrichment-derived
// bonuses stack on top of the triage score:
//
//	volume 24h    >=500k +15 | >=100k +10 | >=10k +5
//	trades 24h    >=1000 +10 | >=300  +5
//	holders       >=1000 +10 | >=100  +5
//	security      >=70   +8  | >=40   +4
//
// Keeps dynamic-k: min(30, max(15, floor(0.4 * input))). Pass thresholds
// are source- and quality-aware; a high-quality bonding token has to
// clear a higher bar because its curve bonus already inflated the base.

type EnhancedFilter struct {
	enricher *enrich.Enricher
	ledger   *resilience.CostLedger
	log      zerolog.Logger
}

func NewEnhancedFilter(enricher *enrich.Enricher, ledger *resilience.CostLedger, log zerolog.Logger) *EnhancedFilter {
	return &EnhancedFilter{
		enricher: enricher,
		ledger:   ledger,
		log:      log.With().Str("component", "enhanced_filter").Logger(),
	}
}

func (f *EnhancedFilter) Run(ctx context.Context, candidates []models.Candidate) []models.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	ptrs := make([]*models.Candidate, len(candidates))
	for i := range candidates {
		ptrs[i] = &candidates[i]
	}
	f.enricher.EnrichBasic(ctx, ptrs)

	kept := make([]models.Candidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		c.EnhancedScore = c.DiscoveryPriorityScore + enrichmentBonus(c)
		c.AdvanceStage(models.StageEnhanced)

		// Velocity scoring runs here for its confidence classification;
		// the score itself feeds the early-gem composite downstream
		scoring.ScoreBasic(c)
		f.ledger.AddBasicScoring(1)

		if c.EnhancedScore >= enhancedThreshold(c) {
			kept = append(kept, *c)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].EnhancedScore > kept[b].EnhancedScore
	})

	k := dynamicK(len(candidates))
	if len(kept) > k {
		kept = kept[:k]
	}

	f.ledger.AddStageCount("stage2_enhanced", len(kept))
	f.log.Debug().Int("in", len(candidates)).Int("out", len(kept)).Int("k", k).
		Msg("enhanced filter complete")
	return kept
}

// dynamicK keeps the stage output proportional to its input, bounded to
// [15, 30].
func dynamicK(inputSize int) int {
	k := int(0.4 * float64(inputSize))
	if k < 15 {
		k = 15
	}
	if k > 30 {
		k = 30
	}
	return k
}

func enrichmentBonus(c *models.Candidate) float64 {
	bonus := 0.0

	switch {
	case c.Volume24h >= 500_000:
		bonus += 15
	case c.Volume24h >= 100_000:
		bonus += 10
	case c.Volume24h >= 10_000:
		bonus += 5
	}

	switch {
	case c.Trades24h >= 1000:
		bonus += 10
	case c.Trades24h >= 300:
		bonus += 5
	}

	switch {
	case c.HolderCount >= 1000:
		bonus += 10
	case c.HolderCount >= 100:
		bonus += 5
	}

	switch {
	case c.SecurityScore >= 70:
		bonus += 8
	case c.SecurityScore >= 40:
		bonus += 4
	}

	return bonus
}

// highQuality marks candidates whose enrichment confirmed real depth.
func highQuality(c *models.Candidate) bool {
	return c.Enriched && c.LiquidityUSD >= 10_000
}

func enhancedThreshold(c *models.Candidate) float64 {
	switch {
	case c.Source == models.SourceBonding && highQuality(c):
		return 45
	case c.Source == models.SourceGraduated && highQuality(c):
		return 40
	default:
		return 35
	}
}
