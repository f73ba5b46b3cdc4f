package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Trending feed adapter. Pulls the vendor's trending list — tokens already
// getting attention, useful as a momentum cross-check against the
// launch-focused feeds.

type TrendingAdapter struct {
	client  *resty.Client
	url     string
	apiKey  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewTrendingAdapter(url, apiKey string, timeout time.Duration, log zerolog.Logger) *TrendingAdapter {
	return &TrendingAdapter{
		client:  resty.New().SetTimeout(timeout),
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		log:     log.With().Str("component", "trending_adapter").Logger(),
	}
}

func (a *TrendingAdapter) Name() string          { return "trending" }
func (a *TrendingAdapter) Source() models.Source { return models.SourceTrending }
func (a *TrendingAdapter) Timeout() time.Duration { return a.timeout }

type trendingResponse struct {
	Data struct {
		Tokens []trendingToken `json:"tokens"`
	} `json:"data"`
	Success bool `json:"success"`
}

type trendingToken struct {
	Address        string  `json:"address"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	MarketCap      float64 `json:"marketcap"`
	Liquidity      float64 `json:"liquidity"`
	Volume24hUSD   float64 `json:"volume24hUSD"`
	Trade24h       int64   `json:"trade24h"`
	PriceChange24h float64 `json:"priceChange24hPercent"`
	UniqueWallet24 int64   `json:"uniqueWallet24h"`
	Holder         int64   `json:"holder"`
}

func (a *TrendingAdapter) Discover(ctx context.Context) ([]models.Candidate, error) {
	var out trendingResponse

	fetch := func() error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("X-API-KEY", a.apiKey).
			SetQueryParams(map[string]string{
				"sort_by":   "volume24hUSD",
				"sort_type": "desc",
				"limit":     "20",
			}).
			SetResult(&out).
			Get(a.url)
		if err != nil {
			return err
		}
		if resp.StatusCode() == 429 {
			// Never retried within a cycle; the adapter returns what it has
			return backoff.Permanent(ErrRateLimited)
		}
		if resp.IsError() {
			return fmt.Errorf("trending feed status %d", resp.StatusCode())
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	now := time.Now()
	candidates := make([]models.Candidate, 0, len(out.Data.Tokens))
	for _, t := range out.Data.Tokens {
		if !ValidAddress(t.Address) {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Address:         t.Address,
			Symbol:          t.Symbol,
			Name:            t.Name,
			Source:          models.SourceTrending,
			DiscoveredAt:    now,
			PriceUSD:        t.Price,
			MarketCapUSD:    t.MarketCap,
			LiquidityUSD:    t.Liquidity,
			Volume24h:       t.Volume24hUSD,
			Trades24h:       t.Trade24h,
			PriceChange24h:  t.PriceChange24h,
			UniqueTraders24: t.UniqueWallet24,
			HolderCount:     t.Holder,
		})
	}

	a.log.Debug().Int("tokens", len(candidates)).Msg("trending feed fetched")
	return candidates, nil
}
