package pipeline

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/internal/scoring"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Stage 3 — Market Validator
//
// Validates fundamentals on data already in hand. No OHLCV here — this
// stage exists to make sure OHLCV money is only ever spent on tokens
// whose market structure can support a position at all.
//
// Score (0-100):
//
//	market cap   50k-5M +30 | 10k-50k +25 | >5M +15
//	liquidity    >100k  +25 | >50k    +20 | >10k +10
//	volume 24h   >500k  +25 | >100k   +20 | >10k +10
//	activity     >1000 trades +20 | >500 +15 | >100 +10
//
// Threshold 35 to pass. Backpressure: the deep-analysis slot count
// shrinks as the breaker accumulates failures, max(5, 10 - failures*2),
// and candidates carrying an early-gem composite under 70 are excluded.

const (
	validationThreshold = 35.0
	validatorPause      = 100 * time.Millisecond
)

type MarketValidator struct {
	breaker *resilience.CircuitBreaker
	ledger  *resilience.CostLedger
	log     zerolog.Logger

	sleep func(time.Duration) // test hook
}

func NewMarketValidator(breaker *resilience.CircuitBreaker, ledger *resilience.CostLedger, log zerolog.Logger) *MarketValidator {
	return &MarketValidator{
		breaker: breaker,
		ledger:  ledger,
		log:     log.With().Str("component", "market_validator").Logger(),
		sleep:   time.Sleep,
	}
}

func (v *MarketValidator) Run(candidates []models.Candidate) []models.Candidate {
	kept := make([]models.Candidate, 0, len(candidates))
	for i := range candidates {
		if i > 0 {
			// Keep downstream per-token lookups from bursting the vendor
			v.sleep(validatorPause)
		}
		c := &candidates[i]
		c.ValidationScore = validationScore(c)
		c.AdvanceStage(models.StageValidated)

		// Early-gem composite: fundamentals blended with velocity, used
		// for the deep-analysis gate below
		basic := scoring.ScoreBasic(c)
		v.ledger.AddBasicScoring(1)
		c.EarlyGemScore = c.ValidationScore*0.6 + basic.FinalScore*0.4

		if c.ValidationScore >= validationThreshold {
			kept = append(kept, *c)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].ValidationScore > kept[b].ValidationScore
	})

	maxStage4 := v.MaxStage4()
	if len(kept) > maxStage4 {
		kept = kept[:maxStage4]
	}

	// The early-gem gate applies after ranking so backpressure trims the
	// weakest first
	filtered := kept[:0]
	for _, c := range kept {
		if c.EarlyGemScore > 0 && c.EarlyGemScore < 70 {
			continue
		}
		filtered = append(filtered, c)
	}
	kept = filtered

	v.ledger.AddStageCount("stage3_validated", len(kept))
	v.log.Debug().Int("in", len(candidates)).Int("out", len(kept)).Int("max_stage4", maxStage4).
		Msg("market validation complete")
	return kept
}

// MaxStage4 is the adaptive deep-analysis slot count.
func (v *MarketValidator) MaxStage4() int {
	max := 10 - v.breaker.FailureCount()*2
	if max < 5 {
		max = 5
	}
	return max
}

func validationScore(c *models.Candidate) float64 {
	score := 0.0

	switch {
	case c.MarketCapUSD >= 50_000 && c.MarketCapUSD <= 5_000_000:
		score += 30
	case c.MarketCapUSD >= 10_000 && c.MarketCapUSD < 50_000:
		score += 25
	case c.MarketCapUSD > 5_000_000:
		score += 15
	}

	switch {
	case c.LiquidityUSD > 100_000:
		score += 25
	case c.LiquidityUSD > 50_000:
		score += 20
	case c.LiquidityUSD > 10_000:
		score += 10
	}

	switch {
	case c.Volume24h > 500_000:
		score += 25
	case c.Volume24h > 100_000:
		score += 20
	case c.Volume24h > 10_000:
		score += 10
	}

	switch {
	case c.Trades24h > 1000:
		score += 20
	case c.Trades24h > 500:
		score += 15
	case c.Trades24h > 100:
		score += 10
	}

	return score
}
