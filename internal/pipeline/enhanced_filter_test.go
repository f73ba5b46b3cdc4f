package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// fakeMetadataPort serves canned metadata for every requested address.
type fakeMetadataPort struct {
	metadata enrich.Metadata
	calls    int
	fail     bool
}

func (f *fakeMetadataPort) Name() string                { return "fake" }
func (f *fakeMetadataPort) CostModel() enrich.CostModel { return enrich.DefaultCostModel }

func (f *fakeMetadataPort) FetchMetadataBatch(_ context.Context, addresses []string) (map[string]enrich.Metadata, error) {
	f.calls++
	if f.fail {
		return nil, enrich.ErrNotAvailable
	}
	out := make(map[string]enrich.Metadata, len(addresses))
	for _, a := range addresses {
		out[a] = f.metadata
	}
	return out, nil
}

func newTestEnricher(port enrich.MetadataBatchPort) *enrich.Enricher {
	ledger := resilience.NewCostLedger()
	breaker := resilience.NewCircuitBreaker(3, time.Minute)
	batcher := enrich.NewOHLCVBatcher(nil, breaker, ledger, 10, zerolog.Nop())
	return enrich.NewEnricher(port, nil, nil, batcher, breaker, ledger, zerolog.Nop())
}

func TestEnhancedFilter_Bonuses(t *testing.T) {
	port := &fakeMetadataPort{metadata: enrich.Metadata{
		Volume24h:     600_000,
		Trades24h:     1500,
		HolderCount:   1200,
		SecurityScore: 80,
		LiquidityUSD:  90_000,
	}}
	f := NewEnhancedFilter(newTestEnricher(port), resilience.NewCostLedger(), zerolog.Nop())

	in := []models.Candidate{{
		Address:                validMint,
		Symbol:                 "GEM",
		Source:                 models.SourceTrending,
		DiscoveryPriorityScore: 38,
	}}
	out := f.Run(context.Background(), in)

	if len(out) != 1 {
		t.Fatal("candidate should pass")
	}
	// 38 + 15 (volume) + 10 (trades) + 10 (holders) + 8 (security) = 81
	if out[0].EnhancedScore != 81 {
		t.Errorf("enhanced score = %v, want 81", out[0].EnhancedScore)
	}
	if !out[0].Enriched {
		t.Error("candidate should be marked enriched")
	}
	if port.calls != 1 {
		t.Errorf("expected one batch call, got %d", port.calls)
	}
}

func TestEnhancedFilter_QualityAwareThresholds(t *testing.T) {
	// A high-quality bonding candidate needs 45; 43 with no bonuses fails
	port := &fakeMetadataPort{metadata: enrich.Metadata{LiquidityUSD: 50_000}}
	f := NewEnhancedFilter(newTestEnricher(port), resilience.NewCostLedger(), zerolog.Nop())

	in := []models.Candidate{{
		Address:                validMint,
		Source:                 models.SourceBonding,
		DiscoveryPriorityScore: 43,
	}}
	out := f.Run(context.Background(), in)
	if len(out) != 0 {
		t.Errorf("HQ bonding candidate at %v should fail the 45 bar", out[0].EnhancedScore)
	}
}

func TestEnhancedFilter_EnrichmentFailurePassesThrough(t *testing.T) {
	// When every enrichment rung fails the candidate flows through on
	// discovery data alone
	port := &fakeMetadataPort{fail: true}
	f := NewEnhancedFilter(newTestEnricher(port), resilience.NewCostLedger(), zerolog.Nop())

	in := []models.Candidate{{
		Address:                validMint,
		Source:                 models.SourceTrending,
		DiscoveryPriorityScore: 38,
	}}
	out := f.Run(context.Background(), in)

	if len(out) != 1 {
		t.Fatal("candidate must survive an enrichment outage")
	}
	if out[0].Enriched {
		t.Error("candidate must not claim enrichment that never happened")
	}
	if out[0].EnhancedScore != 38 {
		t.Errorf("score = %v, want the unchanged 38", out[0].EnhancedScore)
	}
}

func TestDynamicK(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{10, 15},
		{35, 15},
		{50, 20},
		{75, 30},
		{200, 30},
	}
	for _, tt := range tests {
		if got := dynamicK(tt.in); got != tt.want {
			t.Errorf("dynamicK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
