package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/discovery"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Cycle Coordinator
//
// Runs discovery and the four filter stages in strict sequence, each under
// a guard: a stage that dies wholesale degrades the cycle instead of
// killing it. The fallback uses the previous stage's output with a
// penalty — x0.7 when falling back to enhanced scores, x0.8 when falling
// back to validation scores — so degraded results never outrank clean
// ones from other cycles.
//
// The cycle always completes and always produces a report.

type AlertSink interface {
	Emit(ctx context.Context, f models.Finalist)
}

type Coordinator struct {
	discovery *discovery.Orchestrator
	triage    *Triage
	enhanced  *EnhancedFilter
	validator *MarketValidator
	analyzer  *OHLCVAnalyzer
	ledger    *resilience.CostLedger
	breaker   *resilience.CircuitBreaker
	alerts    AlertSink // optional
	log       zerolog.Logger

	// alertThreshold gates emission; each candidate's confidence adjusts
	// it multiplicatively.
	alertThreshold float64

	// postDiscovery observes the merged candidate list before filtering
	// (curve tracking, cache refresh). Optional.
	postDiscovery func([]models.Candidate)
}

func NewCoordinator(
	disc *discovery.Orchestrator,
	triage *Triage,
	enhanced *EnhancedFilter,
	validator *MarketValidator,
	analyzer *OHLCVAnalyzer,
	ledger *resilience.CostLedger,
	breaker *resilience.CircuitBreaker,
	alerts AlertSink,
	alertThreshold float64,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		discovery:      disc,
		triage:         triage,
		enhanced:       enhanced,
		validator:      validator,
		analyzer:       analyzer,
		ledger:         ledger,
		breaker:        breaker,
		alerts:         alerts,
		alertThreshold: alertThreshold,
		log:            log.With().Str("component", "coordinator").Logger(),
	}
}

// SetPostDiscovery registers the discovery observer.
func (co *Coordinator) SetPostDiscovery(fn func([]models.Candidate)) {
	co.postDiscovery = fn
}

// RunCycle executes one full detection cycle.
func (co *Coordinator) RunCycle(ctx context.Context) models.CycleReport {
	report := models.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}
	ledgerBefore := co.ledger.Snapshot()

	// ─── Discovery ───────────────────────────────────────────────────

	discovered, stat := co.timedStage("discovery", 0, func() ([]models.Candidate, error) {
		return co.discovery.Discover(ctx), nil
	})
	report.Stages = append(report.Stages, stat)
	report.TotalCandidates = len(discovered)
	co.ledger.AddTokensProcessed(len(discovered))

	if co.postDiscovery != nil && len(discovered) > 0 {
		co.postDiscovery(discovered)
	}

	// ─── Stage 1: triage ─────────────────────────────────────────────

	triaged, stat := co.timedStage("stage1_triage", len(discovered), func() ([]models.Candidate, error) {
		return co.triage.Run(discovered), nil
	})
	report.Stages = append(report.Stages, stat)

	// ─── Stage 2: enhanced filter ────────────────────────────────────

	enhanced, stat := co.timedStage("stage2_enhanced", len(triaged), func() ([]models.Candidate, error) {
		return co.enhanced.Run(ctx, triaged), nil
	})
	report.Stages = append(report.Stages, stat)
	if stat.Error != "" {
		// Without enrichment bonuses the triage ranking stands as-is
		enhanced = triaged
		report.Degraded = true
	}

	// ─── Stage 3: market validation ──────────────────────────────────

	var finalists []models.Finalist
	validated, stat := co.timedStage("stage3_validation", len(enhanced), func() ([]models.Candidate, error) {
		return co.validator.Run(enhanced), nil
	})
	report.Stages = append(report.Stages, stat)

	if stat.Error != "" {
		// Wholesale validator failure: best-effort list from Stage 2
		finalists = fallbackFinalists(enhanced, 10, 0.7, stat.Error, func(c *models.Candidate, msg string) {
			c.Stage3Error = msg
		}, func(c models.Candidate) float64 { return c.EnhancedScore })
		report.Degraded = true
		report.Stages[len(report.Stages)-1].FellBack = true
	} else {
		// ─── Stage 4: deep analysis ──────────────────────────────────

		deep, s4stat := co.timedFinalStage("stage4_deep", len(validated), func() ([]models.Finalist, error) {
			return co.analyzer.Run(ctx, validated), nil
		})
		report.Stages = append(report.Stages, s4stat)

		if s4stat.Error != "" || (len(deep) == 0 && len(validated) > 0) {
			// Breaker open or wholesale failure: Stage-3 top-k, penalized
			finalists = fallbackFinalists(validated, len(validated), 0.8, "deep analysis unavailable", func(c *models.Candidate, msg string) {
				c.Stage4Error = msg
			}, func(c models.Candidate) float64 { return c.ValidationScore })
			report.Degraded = true
			report.Stages[len(report.Stages)-1].FellBack = true
		} else {
			finalists = deep
		}
	}

	// Every pruned token is a deep-analysis fetch that never happened
	saved := (len(discovered) - len(finalists)) * len(deepTimeframes)
	if saved > 0 {
		co.ledger.AddOHLCVCallsSaved(saved)
	}

	co.emitAlerts(ctx, finalists)

	report.Finalists = finalists
	report.CompletedAt = time.Now()
	report.Ledger = co.ledger.Snapshot()
	report.LedgerDelta = resilience.Delta(ledgerBefore, report.Ledger)
	report.Breaker = co.breaker.Snapshot()

	co.log.Info().
		Str("cycle_id", report.CycleID).
		Int("candidates", report.TotalCandidates).
		Int("finalists", len(finalists)).
		Bool("degraded", report.Degraded).
		Float64("cost_savings_pct", report.LedgerDelta.CostSavingsPct*100).
		Dur("elapsed", report.CompletedAt.Sub(report.StartedAt)).
		Msg("cycle complete")
	return report
}

// timedStage wraps a candidate-list stage with timing and panic recovery.
func (co *Coordinator) timedStage(name string, in int, fn func() ([]models.Candidate, error)) (out []models.Candidate, stat models.StageStats) {
	stat = models.StageStats{Name: name, InCount: in}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stat.Error = fmt.Sprintf("stage panic: %v", r)
			co.log.Error().Str("stage", name).Interface("panic", r).Msg("stage failed wholesale")
			out = nil
		}
		stat.Duration = time.Since(start)
		stat.DurationMs = float64(stat.Duration.Microseconds()) / 1000
		stat.OutCount = len(out)
	}()

	out, err := fn()
	if err != nil {
		stat.Error = err.Error()
	}
	return out, stat
}

func (co *Coordinator) timedFinalStage(name string, in int, fn func() ([]models.Finalist, error)) (out []models.Finalist, stat models.StageStats) {
	stat = models.StageStats{Name: name, InCount: in}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stat.Error = fmt.Sprintf("stage panic: %v", r)
			co.log.Error().Str("stage", name).Interface("panic", r).Msg("stage failed wholesale")
			out = nil
		}
		stat.Duration = time.Since(start)
		stat.DurationMs = float64(stat.Duration.Microseconds()) / 1000
		stat.OutCount = len(out)
	}()

	out, err := fn()
	if err != nil {
		stat.Error = err.Error()
	}
	return out, stat
}

// fallbackFinalists converts an upstream stage's output into penalized
// finalists when a later stage failed wholesale.
func fallbackFinalists(candidates []models.Candidate, limit int, penalty float64, errMsg string, annotate func(*models.Candidate, string), baseScore func(models.Candidate) float64) []models.Finalist {
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.Finalist, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		annotate(&c, errMsg)
		c.FinalScore = baseScore(c) * penalty

		out = append(out, models.Finalist{
			Candidate:  c,
			FinalScore: c.FinalScore,
			Breakdown: models.ScoringBreakdown{
				ScoringMode: "basic_velocity",
				RiskAssessment: models.RiskAssessment{
					RiskLevel:       "HIGH",
					ConfidenceLevel: models.ConfidenceError,
				},
			},
			Conviction: models.ConvictionFor(c.FinalScore),
		})
	}
	return out
}

// emitAlerts forwards finalists that clear the confidence-adjusted
// threshold to the alert sink.
func (co *Coordinator) emitAlerts(ctx context.Context, finalists []models.Finalist) {
	if co.alerts == nil {
		return
	}
	for _, f := range finalists {
		threshold := co.alertThreshold
		if vc := f.Candidate.VelocityConfidence; vc != nil && vc.ThresholdAdjustment > 0 {
			threshold *= vc.ThresholdAdjustment
		}
		if f.FinalScore < threshold {
			continue
		}
		co.alerts.Emit(ctx, f)
	}
}
