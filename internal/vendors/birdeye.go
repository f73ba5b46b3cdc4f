package vendors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/enrich"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Birdeye client: the primary metadata/OHLCV vendor. Exposes the
// true-batch metadata endpoint (one call, N tokens), single-token OHLCV,
// and the top-holder listing. Cost model per the published CU schedule:
// batch is 5 + N^0.8 CU against 30 CU per individual call.

const birdeyeBase = "https://public-api.birdeye.so"

type Birdeye struct {
	client *resty.Client
	apiKey string
	log    zerolog.Logger
}

func NewBirdeye(apiKey string, timeout time.Duration, log zerolog.Logger) *Birdeye {
	return &Birdeye{
		client: resty.New().SetBaseURL(birdeyeBase).SetTimeout(timeout),
		apiKey: apiKey,
		log:    log.With().Str("component", "birdeye").Logger(),
	}
}

func (b *Birdeye) Name() string                 { return "birdeye" }
func (b *Birdeye) CostModel() enrich.CostModel  { return enrich.DefaultCostModel }

type birdeyeMultiResponse struct {
	Success bool                        `json:"success"`
	Data    map[string]birdeyeOverview  `json:"data"`
}

type birdeyeOverview struct {
	Price           float64 `json:"price"`
	MarketCap       float64 `json:"mc"`
	Liquidity       float64 `json:"liquidity"`
	V5mUSD          float64 `json:"v5mUSD"`
	V15mUSD         float64 `json:"v15mUSD"`
	V30mUSD         float64 `json:"v30mUSD"`
	V1hUSD          float64 `json:"v1hUSD"`
	V6hUSD          float64 `json:"v6hUSD"`
	V24hUSD         float64 `json:"v24hUSD"`
	Trade5m         int64   `json:"trade5m"`
	Trade1h         int64   `json:"trade1h"`
	Trade24h        int64   `json:"trade24h"`
	PriceChange5m   float64 `json:"priceChange5mPercent"`
	PriceChange1h   float64 `json:"priceChange1hPercent"`
	PriceChange24h  float64 `json:"priceChange24hPercent"`
	UniqueWallet24h int64   `json:"uniqueWallet24h"`
	Holder          int64   `json:"holder"`
}

// FetchMetadataBatch implements the true-batch metadata port.
func (b *Birdeye) FetchMetadataBatch(ctx context.Context, addresses []string) (map[string]enrich.Metadata, error) {
	if len(addresses) == 0 {
		return map[string]enrich.Metadata{}, nil
	}

	var out birdeyeMultiResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", b.apiKey).
		SetQueryParam("list_address", strings.Join(addresses, ",")).
		SetResult(&out).
		Get("/defi/multi_price_overview")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 429 {
		return nil, enrich.ErrRateLimited
	}
	if resp.IsError() || !out.Success {
		return nil, fmt.Errorf("birdeye batch status %d", resp.StatusCode())
	}

	results := make(map[string]enrich.Metadata, len(out.Data))
	for addr, ov := range out.Data {
		results[addr] = enrich.Metadata{
			PriceUSD:        ov.Price,
			MarketCapUSD:    ov.MarketCap,
			LiquidityUSD:    ov.Liquidity,
			Volume5m:        ov.V5mUSD,
			Volume15m:       ov.V15mUSD,
			Volume30m:       ov.V30mUSD,
			Volume1h:        ov.V1hUSD,
			Volume6h:        ov.V6hUSD,
			Volume24h:       ov.V24hUSD,
			Trades5m:        ov.Trade5m,
			Trades1h:        ov.Trade1h,
			Trades24h:       ov.Trade24h,
			PriceChange5m:   ov.PriceChange5m,
			PriceChange1h:   ov.PriceChange1h,
			PriceChange24h:  ov.PriceChange24h,
			UniqueTraders24: ov.UniqueWallet24h,
			HolderCount:     ov.Holder,
		}
	}
	return results, nil
}

type birdeyeOHLCVResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			O        float64 `json:"o"`
			H        float64 `json:"h"`
			L        float64 `json:"l"`
			C        float64 `json:"c"`
			V        float64 `json:"v"`
			UnixTime int64   `json:"unixTime"`
		} `json:"items"`
	} `json:"data"`
}

// FetchOHLCV implements the OHLCV port.
func (b *Birdeye) FetchOHLCV(ctx context.Context, address string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 20
	}
	var out birdeyeOHLCVResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", b.apiKey).
		SetQueryParams(map[string]string{
			"address": address,
			"type":    string(tf),
			"limit":   fmt.Sprintf("%d", limit),
		}).
		SetResult(&out).
		Get("/defi/ohlcv")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 429 {
		return nil, enrich.ErrRateLimited
	}
	if resp.IsError() || !out.Success {
		return nil, fmt.Errorf("birdeye ohlcv status %d", resp.StatusCode())
	}

	candles := make([]models.Candle, 0, len(out.Data.Items))
	for _, it := range out.Data.Items {
		candles = append(candles, models.Candle{
			Open: it.O, High: it.H, Low: it.L, Close: it.C,
			Volume: it.V, UnixTime: it.UnixTime,
		})
	}
	return candles, nil
}

type birdeyeHolderResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			UIAmount float64 `json:"uiAmount"`
		} `json:"items"`
	} `json:"data"`
}

// FetchTopHolderPercentages implements the holder port. Percentages are
// computed against the observed top-holder total; good enough for
// concentration shape, not for exact supply shares.
func (b *Birdeye) FetchTopHolderPercentages(ctx context.Context, address string) ([]float64, error) {
	var out birdeyeHolderResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", b.apiKey).
		SetQueryParams(map[string]string{
			"address": address,
			"limit":   "50",
		}).
		SetResult(&out).
		Get("/defi/v3/token/holder")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 429 {
		return nil, enrich.ErrRateLimited
	}
	if resp.IsError() || !out.Success {
		return nil, fmt.Errorf("birdeye holders status %d", resp.StatusCode())
	}

	total := 0.0
	for _, it := range out.Data.Items {
		total += it.UIAmount
	}
	if total == 0 {
		return nil, nil
	}
	pcts := make([]float64, 0, len(out.Data.Items))
	for _, it := range out.Data.Items {
		pcts = append(pcts, it.UIAmount/total*100)
	}
	return pcts, nil
}
