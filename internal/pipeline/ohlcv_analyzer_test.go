package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// fakeOHLCVPort returns a fixed candle series, optionally failing for a
// subset of addresses to simulate partial coverage.
type fakeOHLCVPort struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeOHLCVPort) FetchOHLCV(_ context.Context, address string, _ models.Timeframe, limit int) ([]models.Candle, error) {
	f.calls++
	if f.failFor[address] {
		return nil, errors.New("rate limited")
	}
	candles := make([]models.Candle, limit)
	for i := range candles {
		price := 1.0 + float64(i)*0.01
		candles[i] = models.Candle{
			Open: price, High: price * 1.01, Low: price * 0.99, Close: price,
			Volume:   1000,
			UnixTime: int64(1_700_000_000 + i*900),
		}
	}
	return candles, nil
}

type fakeHolderPort struct{ pcts []float64 }

func (f *fakeHolderPort) FetchTopHolderPercentages(context.Context, string) ([]float64, error) {
	return f.pcts, nil
}

func newTestAnalyzer(port enrich.OHLCVPort, holders enrich.HolderPort, breaker *resilience.CircuitBreaker) *OHLCVAnalyzer {
	ledger := resilience.NewCostLedger()
	batcher := enrich.NewOHLCVBatcher(port, breaker, ledger, 10, zerolog.Nop())
	batcher.SetSleep(func(time.Duration) {})
	enricher := enrich.NewEnricher(nil, nil, nil, batcher, breaker, ledger, zerolog.Nop())
	return NewOHLCVAnalyzer(enricher, holders, breaker, ledger, zerolog.Nop())
}

func strongFinalist(addr string) models.Candidate {
	return models.Candidate{
		Address: addr, Symbol: "GEM", Source: models.SourceGraduated,
		MarketCapUSD: 220_000, LiquidityUSD: 60_000,
		Volume5m: 6_000, Volume1h: 40_000, Volume6h: 90_000, Volume24h: 90_000,
		Trades5m: 60, Trades1h: 600, Trades24h: 1400, UniqueTraders24: 450,
		PriceChange5m: 12, PriceChange1h: 30,
		SecurityScore: 75, Enriched: true,
		AgeMinutes:      50,
		ValidationScore: 85,
	}
}

func TestAnalyzer_FullCoverageResetsBreaker(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(3, time.Minute)
	breaker.Update(true)

	analyzer := newTestAnalyzer(&fakeOHLCVPort{}, nil, breaker)
	out := analyzer.Run(context.Background(), []models.Candidate{strongFinalist(validMint)})

	if len(out) != 1 {
		t.Fatalf("expected 1 finalist, got %d", len(out))
	}
	if breaker.FailureCount() != 0 {
		t.Errorf("healthy batch must reset the breaker, count = %d", breaker.FailureCount())
	}
	if !out[0].Candidate.DeepAnalysisPhase {
		t.Error("finalist must be marked deep_analysis_phase")
	}
	if out[0].Breakdown.ScoringMode != "enhanced_ohlcv" {
		t.Errorf("mode = %s, want enhanced_ohlcv", out[0].Breakdown.ScoringMode)
	}
}

func TestAnalyzer_PartialCoverageIncrementsBreaker(t *testing.T) {
	// 40% coverage: 3 of 5 tokens fail both timeframes
	addrs := []string{"a1", "a2", "a3", "a4", "a5"}
	port := &fakeOHLCVPort{failFor: map[string]bool{"a3": true, "a4": true, "a5": true}}
	breaker := resilience.NewCircuitBreaker(3, time.Minute)

	finalists := make([]models.Candidate, len(addrs))
	for i, a := range addrs {
		finalists[i] = strongFinalist(a)
	}

	analyzer := newTestAnalyzer(port, nil, breaker)
	out := analyzer.Run(context.Background(), finalists)

	if breaker.FailureCount() != 1 {
		t.Errorf("40%% coverage must increment the breaker, count = %d", breaker.FailureCount())
	}
	// Every finalist still comes back, annotated where data was missing
	if len(out) != 5 {
		t.Fatalf("expected 5 finalists, got %d", len(out))
	}
	annotated := 0
	for _, f := range out {
		if f.Candidate.OHLCVError != "" {
			annotated++
			if f.Breakdown.ScoringMode != "basic_velocity" {
				t.Errorf("no-data finalist scored in %s mode, want basic_velocity", f.Breakdown.ScoringMode)
			}
		} else if f.Breakdown.ScoringMode != "enhanced_ohlcv" {
			t.Errorf("covered finalist scored in %s mode, want enhanced_ohlcv", f.Breakdown.ScoringMode)
		}
	}
	if annotated != 3 {
		t.Errorf("expected 3 annotated finalists, got %d", annotated)
	}
}

func TestAnalyzer_BreakerOpenSkipsStage(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(2, time.Hour)
	breaker.Update(true)
	breaker.Update(true)

	port := &fakeOHLCVPort{}
	analyzer := newTestAnalyzer(port, nil, breaker)
	out := analyzer.Run(context.Background(), []models.Candidate{strongFinalist(validMint)})

	if out != nil {
		t.Errorf("open breaker must skip the stage, got %d finalists", len(out))
	}
	if port.calls != 0 {
		t.Errorf("no OHLCV calls may happen while open, got %d", port.calls)
	}
}

func TestAnalyzer_HolderDataFlowsIntoBreakdown(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(3, time.Minute)
	holders := &fakeHolderPort{pcts: []float64{12, 8, 5, 3, 2, 2, 1, 1}}

	analyzer := newTestAnalyzer(&fakeOHLCVPort{}, holders, breaker)
	out := analyzer.Run(context.Background(), []models.Candidate{strongFinalist(validMint)})

	if out[0].Breakdown.HolderAnalysis == nil {
		t.Fatal("expected holder analysis in the breakdown")
	}
	if out[0].Breakdown.HolderAnalysis.WhaleCount == 0 {
		t.Error("expected whales detected from the 12/8/5 percentages")
	}
}
