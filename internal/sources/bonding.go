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

// Bonding-tokens feed adapter. Pre-graduation tokens still filling their
// curve; only those at 70%+ progress are worth watching, anything below is
// indistinguishable from launch spam.

const minBondingProgress = 70.0

type BondingAdapter struct {
	client  *resty.Client
	url     string
	apiKey  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewBondingAdapter(url, apiKey string, timeout time.Duration, log zerolog.Logger) *BondingAdapter {
	return &BondingAdapter{
		client:  resty.New().SetTimeout(timeout),
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		log:     log.With().Str("component", "bonding_adapter").Logger(),
	}
}

func (a *BondingAdapter) Name() string           { return "bonding" }
func (a *BondingAdapter) Source() models.Source  { return models.SourceBonding }
func (a *BondingAdapter) Timeout() time.Duration { return a.timeout }

type bondingResponse struct {
	Result []bondingToken `json:"result"`
}

type bondingToken struct {
	TokenAddress        string  `json:"tokenAddress"`
	Symbol              string  `json:"symbol"`
	Name                string  `json:"name"`
	PriceUSD            float64 `json:"priceUsd,string"`
	MarketCap           float64 `json:"fullyDilutedValuation,string"`
	Liquidity           float64 `json:"liquidity,string"`
	BondingCurveProgress float64 `json:"bondingCurveProgress"`
}

func (a *BondingAdapter) Discover(ctx context.Context) ([]models.Candidate, error) {
	var out bondingResponse

	fetch := func() error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("X-API-Key", a.apiKey).
			SetQueryParam("limit", "100").
			SetResult(&out).
			Get(a.url)
		if err != nil {
			return err
		}
		if resp.StatusCode() == 429 {
			return backoff.Permanent(ErrRateLimited)
		}
		if resp.IsError() {
			return fmt.Errorf("bonding feed status %d", resp.StatusCode())
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	now := time.Now()
	candidates := make([]models.Candidate, 0, len(out.Result))
	belowThreshold := 0
	var topProgress float64
	for _, t := range out.Result {
		if !ValidAddress(t.TokenAddress) {
			continue
		}
		if t.BondingCurveProgress < minBondingProgress {
			belowThreshold++
			continue
		}
		if t.BondingCurveProgress > topProgress {
			topProgress = t.BondingCurveProgress
		}
		candidates = append(candidates, models.Candidate{
			Address:                 t.TokenAddress,
			Symbol:                  t.Symbol,
			Name:                    t.Name,
			Source:                  models.SourceBonding,
			DiscoveredAt:            now,
			PriceUSD:                t.PriceUSD,
			MarketCapUSD:            t.MarketCap,
			LiquidityUSD:            t.Liquidity,
			BondingCurveProgressPct: clampProgress(t.BondingCurveProgress),
			GraduationThresholdUSD:  graduationThresholdUSD,
		})
	}

	a.log.Info().
		Int("kept", len(candidates)).
		Int("below_threshold", belowThreshold).
		Float64("top_progress_pct", topProgress).
		Msg("bonding feed summary")
	return candidates, nil
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// graduationThresholdUSD is the launchpad's curve-exit market cap.
const graduationThresholdUSD = 69_000.0
