package vendors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
)

// DexScreener client: the legacy-batch fallback. Free, no key, up to 30
// tokens per call, but a thinner record than the primary vendor — no
// short-window trade counts, no holder data. Its cost model is flat
// because nothing is billed; the enricher only uses it when the primary
// batch path is down.

const dexScreenerBase = "https://api.dexscreener.com"

const dexScreenerBatchLimit = 30

type DexScreener struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewDexScreener(timeout time.Duration, log zerolog.Logger) *DexScreener {
	return &DexScreener{
		client: resty.New().SetBaseURL(dexScreenerBase).SetTimeout(timeout),
		log:    log.With().Str("component", "dexscreener").Logger(),
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

func (d *DexScreener) CostModel() enrich.CostModel {
	return enrich.CostModel{BaseCU: 0, Exponent: 0, PerTokenCU: 0}
}

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	BaseToken struct {
		Address string `json:"address"`
	} `json:"baseToken"`
	PriceUSD  string  `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV    float64 `json:"fdv"`
	Volume struct {
		H24 float64 `json:"h24"`
		H6  float64 `json:"h6"`
		H1  float64 `json:"h1"`
		M5  float64 `json:"m5"`
	} `json:"volume"`
	Txns struct {
		H24 struct {
			Buys  int64 `json:"buys"`
			Sells int64 `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	PriceChange struct {
		H24 float64 `json:"h24"`
		H1  float64 `json:"h1"`
		M5  float64 `json:"m5"`
	} `json:"priceChange"`
}

// FetchMetadataBatch implements the legacy batch port. Addresses beyond
// the vendor's 30-token window are fetched in chunks.
func (d *DexScreener) FetchMetadataBatch(ctx context.Context, addresses []string) (map[string]enrich.Metadata, error) {
	results := make(map[string]enrich.Metadata, len(addresses))

	for start := 0; start < len(addresses); start += dexScreenerBatchLimit {
		end := start + dexScreenerBatchLimit
		if end > len(addresses) {
			end = len(addresses)
		}
		if err := d.fetchChunk(ctx, addresses[start:end], results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (d *DexScreener) fetchChunk(ctx context.Context, chunk []string, results map[string]enrich.Metadata) error {
	var out dexScreenerResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/latest/dex/tokens/" + strings.Join(chunk, ","))
	if err != nil {
		return err
	}
	if resp.StatusCode() == 429 {
		return enrich.ErrRateLimited
	}
	if resp.IsError() {
		return fmt.Errorf("dexscreener status %d", resp.StatusCode())
	}

	// One token can have many pairs; keep the deepest pool per token
	for _, pair := range out.Pairs {
		addr := pair.BaseToken.Address
		existing, seen := results[addr]
		if seen && existing.LiquidityUSD >= pair.Liquidity.USD {
			continue
		}

		var price float64
		fmt.Sscanf(pair.PriceUSD, "%f", &price)

		results[addr] = enrich.Metadata{
			PriceUSD:       price,
			MarketCapUSD:   pair.FDV,
			LiquidityUSD:   pair.Liquidity.USD,
			Volume5m:       pair.Volume.M5,
			Volume1h:       pair.Volume.H1,
			Volume6h:       pair.Volume.H6,
			Volume24h:      pair.Volume.H24,
			Trades24h:      pair.Txns.H24.Buys + pair.Txns.H24.Sells,
			PriceChange5m:  pair.PriceChange.M5,
			PriceChange1h:  pair.PriceChange.H1,
			PriceChange24h: pair.PriceChange.H24,
		}
	}
	return nil
}
