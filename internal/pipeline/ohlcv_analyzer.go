package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/internal/scoring"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Stage 4 — OHLCV Final Analysis
//
// The only stage allowed to spend on candles. One batched OHLCV fetch for
// every finalist across the short timeframes, then full interaction-aware
// scoring per candidate. Per-candidate failures degrade to the validation
// score with an error annotation — a finalist that got this far is worth
// alerting on even when deep data is missing.
//
// Breaker contract: batch coverage >= 80% resets the failure count,
// anything less increments it. While the breaker is OPEN the stage emits
// nothing and the coordinator falls back to the validator's output.

var deepTimeframes = []models.Timeframe{models.Timeframe15m, models.Timeframe30m}

const healthyCoverage = 0.80

type OHLCVAnalyzer struct {
	enricher *enrich.Enricher
	holders  enrich.HolderPort // optional
	breaker  *resilience.CircuitBreaker
	ledger   *resilience.CostLedger
	log      zerolog.Logger
}

func NewOHLCVAnalyzer(enricher *enrich.Enricher, holders enrich.HolderPort, breaker *resilience.CircuitBreaker, ledger *resilience.CostLedger, log zerolog.Logger) *OHLCVAnalyzer {
	return &OHLCVAnalyzer{
		enricher: enricher,
		holders:  holders,
		breaker:  breaker,
		ledger:   ledger,
		log:      log.With().Str("component", "ohlcv_analyzer").Logger(),
	}
}

// Run deep-analyzes the finalists. Returns one Finalist per input
// candidate; none are dropped here, only annotated.
func (a *OHLCVAnalyzer) Run(ctx context.Context, finalists []models.Candidate) []models.Finalist {
	if len(finalists) == 0 {
		return nil
	}
	if !a.breaker.Allow() {
		a.log.Warn().Msg("circuit breaker open, skipping deep analysis")
		return nil
	}

	addresses := make([]string, len(finalists))
	for i, c := range finalists {
		addresses[i] = c.Address
	}

	batch := a.enricher.OHLCV().FetchBatch(ctx, addresses, deepTimeframes)
	a.breaker.Update(batch.Coverage() < healthyCoverage)

	out := make([]models.Finalist, 0, len(finalists))
	for i := range finalists {
		c := &finalists[i]
		c.DeepAnalysisPhase = true

		series := batch.Series[c.Address]
		hasOHLCV := series.Coverage(deepTimeframes) > 0
		if hasOHLCV {
			enrich.ApplyTimeframes(c, series)
		} else {
			c.OHLCVError = "no OHLCV data returned"
		}

		out = append(out, a.scoreFinalist(ctx, c, hasOHLCV))
	}

	a.ledger.AddStageCount("stage4_deep", len(out))
	return out
}

// scoreFinalist runs enhanced scoring when candles arrived, basic velocity
// scoring otherwise, degrading to the validation score on any failure
// rather than dropping the candidate.
func (a *OHLCVAnalyzer) scoreFinalist(ctx context.Context, c *models.Candidate, hasOHLCV bool) (f models.Finalist) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("address", c.Address).
				Msg("deep scoring panicked, falling back to validation score")
			c.Stage4Error = fmt.Sprintf("scoring failure: %v", r)
			c.FinalScore = c.ValidationScore
			f = models.Finalist{
				Candidate:  *c,
				FinalScore: c.FinalScore,
				Breakdown: models.ScoringBreakdown{
					ScoringMode: "basic_velocity",
					RiskAssessment: models.RiskAssessment{
						RiskLevel:       "HIGH",
						ConfidenceLevel: models.ConfidenceError,
					},
				},
				Conviction: models.ConvictionFor(c.FinalScore),
			}
		}
	}()

	var res scoring.Result
	if hasOHLCV {
		var holderPcts []float64
		if a.holders != nil {
			pcts, err := a.holders.FetchTopHolderPercentages(ctx, c.Address)
			if err != nil {
				a.log.Debug().Err(err).Str("address", c.Address).Msg("holder data unavailable")
			} else {
				holderPcts = pcts
			}
		}
		res = scoring.ScoreEnhanced(c, holderPcts)
		a.ledger.AddEnhancedScoring(1)
	} else {
		res = scoring.ScoreBasic(c)
		a.ledger.AddBasicScoring(1)
	}

	c.FinalScore = res.FinalScore
	c.AdvanceStage(models.StageDeepAnalyzed)

	return models.Finalist{
		Candidate:  *c,
		FinalScore: res.FinalScore,
		Breakdown:  res.Breakdown,
		Conviction: models.ConvictionFor(res.FinalScore),
	}
}
