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

// Graduated-tokens feed adapter. Tokens that exited their bonding curve to
// a real AMM pool in the last 12 hours — the detector's richest hunting
// ground, since fresh graduates combine a proven launch with an age
// measured in minutes.

const graduatedWindow = 12 * time.Hour

type GraduatedAdapter struct {
	client  *resty.Client
	url     string
	apiKey  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewGraduatedAdapter(url, apiKey string, timeout time.Duration, log zerolog.Logger) *GraduatedAdapter {
	return &GraduatedAdapter{
		client:  resty.New().SetTimeout(timeout),
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		log:     log.With().Str("component", "graduated_adapter").Logger(),
	}
}

func (a *GraduatedAdapter) Name() string           { return "graduated" }
func (a *GraduatedAdapter) Source() models.Source  { return models.SourceGraduated }
func (a *GraduatedAdapter) Timeout() time.Duration { return a.timeout }

type graduatedResponse struct {
	Result []graduatedToken `json:"result"`
}

type graduatedToken struct {
	TokenAddress  string  `json:"tokenAddress"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	PriceUSD      float64 `json:"priceUsd,string"`
	MarketCap     float64 `json:"fullyDilutedValuation,string"`
	Liquidity     float64 `json:"liquidity,string"`
	GraduatedAt   string  `json:"graduatedAt"` // RFC3339
}

func (a *GraduatedAdapter) Discover(ctx context.Context) ([]models.Candidate, error) {
	var out graduatedResponse

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
			return fmt.Errorf("graduated feed status %d", resp.StatusCode())
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	now := time.Now()
	candidates := make([]models.Candidate, 0, len(out.Result))
	skippedOld := 0
	for _, t := range out.Result {
		if !ValidAddress(t.TokenAddress) {
			continue
		}
		gradAt, err := time.Parse(time.RFC3339, t.GraduatedAt)
		if err != nil {
			continue
		}
		if now.Sub(gradAt) > graduatedWindow {
			skippedOld++
			continue
		}

		c := models.Candidate{
			Address:      t.TokenAddress,
			Symbol:       t.Symbol,
			Name:         t.Name,
			Source:       models.SourceGraduated,
			DiscoveredAt: now,
			PriceUSD:     t.PriceUSD,
			MarketCapUSD: t.MarketCap,
			LiquidityUSD: t.Liquidity,
			GraduatedAt:  &gradAt,
		}
		c.RefreshAgeFlags(now)
		candidates = append(candidates, c)
	}

	a.log.Debug().
		Int("tokens", len(candidates)).
		Int("outside_window", skippedOld).
		Msg("graduated feed fetched")
	return candidates, nil
}
