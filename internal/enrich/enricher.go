package enrich

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Batch Enricher
//
// Turns a list of candidate addresses into enriched records while spending
// as little as possible:
//
//	true batch    one call for N tokens, 5 + N^0.8 CU
//	legacy batch  single-vendor batch, no cross-merge
//	individual    30 CU per token, last resort
//
// Each downgrade in that chain is logged. Per-token merge policy: if the
// batch result holds the address and is not an error, merge and mark
// enriched; otherwise the original candidate passes through untouched.
//
// Two modes: basic (metadata only) and comprehensive (metadata + OHLCV).
// OHLCV is forbidden outside deep analysis, so comprehensive mode is only
// reachable from the final stage.

type Mode string

const (
	ModeBasic         Mode = "basic"
	ModeComprehensive Mode = "comprehensive"
)

type Enricher struct {
	batch      MetadataBatchPort // preferred true-batch endpoint
	legacy     MetadataBatchPort // older single-vendor batch
	individual MetadataPort      // per-token fallback
	ohlcv      *OHLCVBatcher
	breaker    *resilience.CircuitBreaker
	ledger     *resilience.CostLedger
	log        zerolog.Logger
}

func NewEnricher(batch, legacy MetadataBatchPort, individual MetadataPort, ohlcv *OHLCVBatcher, breaker *resilience.CircuitBreaker, ledger *resilience.CostLedger, log zerolog.Logger) *Enricher {
	return &Enricher{
		batch:      batch,
		legacy:     legacy,
		individual: individual,
		ohlcv:      ohlcv,
		breaker:    breaker,
		ledger:     ledger,
		log:        log.With().Str("component", "enricher").Logger(),
	}
}

// OHLCV exposes the batcher for deep analysis.
func (e *Enricher) OHLCV() *OHLCVBatcher { return e.ohlcv }

// EnrichBasic fetches metadata for every not-yet-enriched candidate and
// merges it in place. Candidates missing from the response pass through
// unchanged — enrichment is best-effort by design.
func (e *Enricher) EnrichBasic(ctx context.Context, candidates []*models.Candidate) {
	var addresses []string
	byAddr := make(map[string]*models.Candidate)
	for _, c := range candidates {
		if c.Enriched {
			continue
		}
		addresses = append(addresses, c.Address)
		byAddr[c.Address] = c
	}
	if len(addresses) == 0 {
		return
	}

	results, method := e.fetchMetadata(ctx, addresses)
	now := time.Now()

	merged := 0
	for addr, c := range byAddr {
		md, ok := results[addr]
		if !ok || md.Err != nil {
			continue
		}
		mergeMetadata(c, md)
		c.Enriched = true
		c.EnhancementMethod = method
		c.RefreshDerived()
		if c.GraduatedAt != nil {
			c.RefreshAgeFlags(now)
		}
		merged++
	}

	e.log.Debug().
		Int("requested", len(addresses)).
		Int("merged", merged).
		Str("method", method).
		Msg("batch enrichment complete")
}

// fetchMetadata walks the fallback chain and reports which rung served.
// A successful batch from either rung resets the shared circuit breaker;
// the breaker closes on any healthy batch, whatever stage issued it.
func (e *Enricher) fetchMetadata(ctx context.Context, addresses []string) (map[string]Metadata, string) {
	if e.batch != nil {
		results, err := e.batch.FetchMetadataBatch(ctx, addresses)
		if err == nil {
			e.recordBatchSuccess()
			e.logSavings(e.batch, len(addresses))
			return results, "true_batch"
		}
		e.log.Warn().Err(err).Str("vendor", e.batch.Name()).
			Msg("true-batch metadata failed, downgrading to legacy batch")
	}

	if e.legacy != nil {
		results, err := e.legacy.FetchMetadataBatch(ctx, addresses)
		if err == nil {
			e.recordBatchSuccess()
			e.logSavings(e.legacy, len(addresses))
			return results, "legacy_batch"
		}
		e.log.Warn().Err(err).Str("vendor", e.legacy.Name()).
			Msg("legacy batch metadata failed, downgrading to individual calls")
	}

	results := make(map[string]Metadata, len(addresses))
	if e.individual == nil {
		return results, "none"
	}
	for _, addr := range addresses {
		md, err := e.individual.FetchMetadata(ctx, addr)
		if err != nil {
			md = Metadata{Err: err}
		}
		results[addr] = md
	}
	return results, "individual"
}

func (e *Enricher) recordBatchSuccess() {
	if e.breaker != nil {
		e.breaker.Update(false)
	}
}

func (e *Enricher) logSavings(port MetadataBatchPort, n int) {
	model := port.CostModel()
	saved := model.IndividualCost(n) - model.BatchCost(n)
	e.log.Info().
		Str("vendor", port.Name()).
		Int("tokens", n).
		Float64("batch_cu", model.BatchCost(n)).
		Float64("saved_cu", saved).
		Msg("batch metadata call")
}

// mergeMetadata copies vendor fields onto the candidate. Zero values in
// the response never clobber data the candidate already carries.
func mergeMetadata(c *models.Candidate, md Metadata) {
	setF := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	setI := func(dst *int64, v int64) {
		if v != 0 {
			*dst = v
		}
	}

	setF(&c.PriceUSD, md.PriceUSD)
	setF(&c.MarketCapUSD, md.MarketCapUSD)
	setF(&c.LiquidityUSD, md.LiquidityUSD)
	setF(&c.Volume5m, md.Volume5m)
	setF(&c.Volume15m, md.Volume15m)
	setF(&c.Volume30m, md.Volume30m)
	setF(&c.Volume1h, md.Volume1h)
	setF(&c.Volume6h, md.Volume6h)
	setF(&c.Volume24h, md.Volume24h)
	setI(&c.Trades5m, md.Trades5m)
	setI(&c.Trades1h, md.Trades1h)
	setI(&c.Trades24h, md.Trades24h)
	setF(&c.PriceChange5m, md.PriceChange5m)
	setF(&c.PriceChange1h, md.PriceChange1h)
	setF(&c.PriceChange24h, md.PriceChange24h)
	setI(&c.UniqueTraders24, md.UniqueTraders24)
	setI(&c.HolderCount, md.HolderCount)
	setF(&c.SecurityScore, md.SecurityScore)
	if md.GraduatedAt != nil && c.GraduatedAt == nil {
		c.GraduatedAt = md.GraduatedAt
	}
}
