package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/discovery"
	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/internal/sources"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// fakeAdapter is a canned discovery source.
type fakeAdapter struct {
	name       string
	src        models.Source
	candidates []models.Candidate
	err        error
}

func (f *fakeAdapter) Name() string           { return f.name }
func (f *fakeAdapter) Source() models.Source  { return f.src }
func (f *fakeAdapter) Timeout() time.Duration { return time.Second }
func (f *fakeAdapter) Discover(context.Context) ([]models.Candidate, error) {
	return f.candidates, f.err
}

// captureSink records emitted alerts.
type captureSink struct {
	mu      sync.Mutex
	emitted []models.Finalist
}

func (s *captureSink) Emit(_ context.Context, f models.Finalist) {
	s.mu.Lock()
	s.emitted = append(s.emitted, f)
	s.mu.Unlock()
}

type coordinatorFixture struct {
	coordinator *Coordinator
	validator   *MarketValidator
	breaker     *resilience.CircuitBreaker
	ledger      *resilience.CostLedger
	sink        *captureSink
	ohlcvPort   *fakeOHLCVPort
	metaPort    *fakeMetadataPort
}

func newFixture(t *testing.T, adapters ...sources.Adapter) *coordinatorFixture {
	t.Helper()

	ledger := resilience.NewCostLedger()
	breaker := resilience.NewCircuitBreaker(3, time.Minute)

	metaPort := &fakeMetadataPort{metadata: enrich.Metadata{
		Volume24h: 600_000, Trades24h: 1500, HolderCount: 800, SecurityScore: 75,
		LiquidityUSD: 120_000, MarketCapUSD: 400_000,
		Volume5m: 6_000, Volume15m: 12_000, Volume1h: 40_000, Volume6h: 90_000,
		Trades5m: 60, Trades1h: 600, UniqueTraders24: 450,
		PriceChange5m: 12, PriceChange1h: 30,
	}}
	ohlcvPort := &fakeOHLCVPort{}
	batcher := enrich.NewOHLCVBatcher(ohlcvPort, breaker, ledger, 10, zerolog.Nop())
	batcher.SetSleep(func(time.Duration) {})
	enricher := enrich.NewEnricher(metaPort, nil, nil, batcher, breaker, ledger, zerolog.Nop())

	validator := NewMarketValidator(breaker, ledger, zerolog.Nop())
	validator.sleep = func(time.Duration) {}

	sink := &captureSink{}
	coordinator := NewCoordinator(
		discovery.NewOrchestrator(zerolog.Nop(), adapters...),
		NewTriage(ledger, zerolog.Nop()),
		NewEnhancedFilter(enricher, ledger, zerolog.Nop()),
		validator,
		NewOHLCVAnalyzer(enricher, nil, breaker, ledger, zerolog.Nop()),
		ledger,
		breaker,
		sink,
		35,
		zerolog.Nop(),
	)
	return &coordinatorFixture{
		coordinator: coordinator,
		validator:   validator,
		breaker:     breaker,
		ledger:      ledger,
		sink:        sink,
		ohlcvPort:   ohlcvPort,
		metaPort:    metaPort,
	}
}

func freshGraduateCandidate(addr, symbol string) models.Candidate {
	grad := time.Now().Add(-20 * time.Minute)
	c := models.Candidate{
		Address: addr, Symbol: symbol, Source: models.SourceGraduated,
		GraduatedAt: &grad, DiscoveredAt: time.Now(),
		MarketCapUSD: 220_000, LiquidityUSD: 60_000,
		Volume5m: 6_000, Volume15m: 12_000, Volume1h: 40_000, Volume6h: 90_000, Volume24h: 90_000,
		Trades5m: 60, Trades1h: 600, Trades24h: 1400, UniqueTraders24: 450,
		PriceChange5m: 12, PriceChange15m: 18, PriceChange30m: 22, PriceChange1h: 30,
	}
	c.RefreshAgeFlags(time.Now())
	return c
}

func TestCycle_EmptySources(t *testing.T) {
	fix := newFixture(t, &fakeAdapter{name: "trending", src: models.SourceTrending})

	report := fix.coordinator.RunCycle(context.Background())

	if report.TotalCandidates != 0 {
		t.Errorf("total = %d, want 0", report.TotalCandidates)
	}
	if len(report.Finalists) != 0 {
		t.Errorf("finalists = %d, want 0", len(report.Finalists))
	}
	if report.Degraded {
		t.Error("an empty cycle is not a degraded cycle")
	}
	if len(fix.sink.emitted) != 0 {
		t.Error("no alerts expected")
	}
}

func TestCycle_AllSourcesFail(t *testing.T) {
	fix := newFixture(t,
		&fakeAdapter{name: "trending", src: models.SourceTrending, err: errors.New("down")},
		&fakeAdapter{name: "graduated", src: models.SourceGraduated, err: errors.New("down")},
	)

	report := fix.coordinator.RunCycle(context.Background())

	if report.TotalCandidates != 0 {
		t.Errorf("total = %d, want 0", report.TotalCandidates)
	}
	if report.CompletedAt.IsZero() {
		t.Error("a cycle must always complete and report")
	}
}

func TestCycle_DuplicateAcrossSources(t *testing.T) {
	dup := freshGraduateCandidate(validMint, "DUP")
	trendingCopy := dup
	trendingCopy.Source = models.SourceTrending
	trendingCopy.GraduatedAt = nil

	fix := newFixture(t,
		&fakeAdapter{name: "trending", src: models.SourceTrending, candidates: []models.Candidate{trendingCopy}},
		&fakeAdapter{name: "graduated", src: models.SourceGraduated, candidates: []models.Candidate{dup}},
	)

	report := fix.coordinator.RunCycle(context.Background())

	if report.TotalCandidates != 1 {
		t.Fatalf("duplicate must collapse to 1, got %d", report.TotalCandidates)
	}
	// First-registered source wins the tag
	found := false
	for _, f := range report.Finalists {
		if f.Candidate.Address == validMint {
			found = true
			if f.Candidate.Source != models.SourceTrending {
				t.Errorf("source = %s, want first-seen trending", f.Candidate.Source)
			}
		}
	}
	if !found {
		t.Fatal("the deduped candidate should reach the finalists")
	}
	// No double counting
	if report.LedgerDelta.TokensProcessed != 1 {
		t.Errorf("ledger tokens = %d, want 1", report.LedgerDelta.TokensProcessed)
	}
}

func TestCycle_FreshGraduateEndToEnd(t *testing.T) {
	fix := newFixture(t, &fakeAdapter{
		name: "graduated", src: models.SourceGraduated,
		candidates: []models.Candidate{freshGraduateCandidate(validMint, "GEM")},
	})

	report := fix.coordinator.RunCycle(context.Background())

	if len(report.Finalists) != 1 {
		t.Fatalf("expected 1 finalist, got %d", len(report.Finalists))
	}
	f := report.Finalists[0]
	if f.FinalScore < 60 {
		t.Errorf("final score = %v, want >= 60", f.FinalScore)
	}
	if f.Conviction != models.ConvictionHigh && f.Conviction != models.ConvictionVeryHigh {
		t.Errorf("conviction = %s, want HIGH or VERY_HIGH", f.Conviction)
	}
	if f.Breakdown.FreshGraduateBonus == 0 {
		t.Error("breakdown must carry the fresh-graduate bonus")
	}
	if len(fix.sink.emitted) != 1 {
		t.Errorf("expected 1 alert, got %d", len(fix.sink.emitted))
	}
	if report.LedgerDelta.OHLCVCallsMade == 0 {
		t.Error("deep analysis should record OHLCV spend")
	}
}

func TestCycle_Stage3WholesaleFailure(t *testing.T) {
	var candidates []models.Candidate
	for i := 0; i < 20; i++ {
		candidates = append(candidates, freshGraduateCandidate(mintAddr(i), "G"+string(rune('A'+i))))
	}
	fix := newFixture(t, &fakeAdapter{name: "graduated", src: models.SourceGraduated, candidates: candidates})

	// The validator's pacing hook fires between candidates; poisoning it
	// simulates a mid-run wholesale failure
	fix.validator.sleep = func(time.Duration) { panic("validator exploded") }

	report := fix.coordinator.RunCycle(context.Background())

	if !report.Degraded {
		t.Fatal("report must be marked degraded")
	}
	if len(report.Finalists) == 0 || len(report.Finalists) > 10 {
		t.Fatalf("fallback must be the stage-2 top 10, got %d", len(report.Finalists))
	}
	for _, f := range report.Finalists {
		if f.Candidate.Stage3Error == "" {
			t.Error("fallback finalists must carry stage3_error")
		}
		want := f.Candidate.EnhancedScore * 0.7
		if diff := f.FinalScore - want; diff > 0.001 || diff < -0.001 {
			t.Errorf("final = %v, want enhanced %v x 0.7 = %v", f.FinalScore, f.Candidate.EnhancedScore, want)
		}
	}
}

func TestCycle_BreakerOpenAtStage4(t *testing.T) {
	fix := newFixture(t, &fakeAdapter{
		name: "graduated", src: models.SourceGraduated,
		candidates: []models.Candidate{freshGraduateCandidate(validMint, "GEM")},
	})
	// Trip the breaker before the cycle; the metadata vendor is down too,
	// otherwise its healthy batch would legitimately close the breaker
	// before deep analysis runs
	fix.metaPort.fail = true
	for i := 0; i < 3; i++ {
		fix.breaker.Update(true)
	}

	report := fix.coordinator.RunCycle(context.Background())

	if !report.Degraded {
		t.Fatal("breaker-open cycle must be degraded")
	}
	if len(report.Finalists) != 1 {
		t.Fatalf("stage-3 output must carry through, got %d finalists", len(report.Finalists))
	}
	f := report.Finalists[0]
	if f.Candidate.Stage4Error == "" {
		t.Error("fallback finalist must carry stage4_error")
	}
	want := f.Candidate.ValidationScore * 0.8
	if diff := f.FinalScore - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("final = %v, want validation x 0.8 = %v", f.FinalScore, want)
	}
	if fix.ohlcvPort.calls != 0 {
		t.Errorf("no OHLCV spend while open, got %d calls", fix.ohlcvPort.calls)
	}
}

func TestCycle_SavingsAccounting(t *testing.T) {
	var candidates []models.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, freshGraduateCandidate(mintAddr(i), "G"+string(rune('A'+i))))
	}
	fix := newFixture(t, &fakeAdapter{name: "graduated", src: models.SourceGraduated, candidates: candidates})

	report := fix.coordinator.RunCycle(context.Background())

	if report.LedgerDelta.CostSavingsPct < 0 || report.LedgerDelta.CostSavingsPct > 1 {
		t.Errorf("savings %v outside [0,1]", report.LedgerDelta.CostSavingsPct)
	}
}
