package curve

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// LaunchLab curves denominate graduation in SOL raised rather than USD
// market cap. The analyzer converts a USD cap to SOL raised using a
// cached spot price and maps the result onto the SOL-raised stage bands.

// GraduationThresholdSOL is LaunchLab's curve-exit target.
const GraduationThresholdSOL = 85.0

const solPriceCacheTTL = 60 * time.Second

type LaunchLabAnalyzer struct {
	client *resty.Client
	url    string
	log    zerolog.Logger

	mu        sync.Mutex
	solPrice  float64
	fetchedAt time.Time
}

func NewLaunchLabAnalyzer(priceURL string, log zerolog.Logger) *LaunchLabAnalyzer {
	return &LaunchLabAnalyzer{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    priceURL,
		log:    log.With().Str("component", "launchlab").Logger(),
	}
}

type solPriceResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

// SolPrice returns the cached SOL/USD price, refreshing at most once per
// minute. On fetch failure the stale value keeps serving; a zero return
// means the price has never been fetched.
func (a *LaunchLabAnalyzer) SolPrice(ctx context.Context) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Since(a.fetchedAt) < solPriceCacheTTL && a.solPrice > 0 {
		return a.solPrice
	}

	var out solPriceResponse
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get(a.url)
	if err != nil || resp.IsError() || out.Solana.USD <= 0 {
		a.log.Warn().Err(err).Msg("SOL price fetch failed, serving cached value")
		return a.solPrice
	}

	a.solPrice = out.Solana.USD
	a.fetchedAt = time.Now()
	return a.solPrice
}

// SolRaised estimates SOL raised from a USD market cap.
func (a *LaunchLabAnalyzer) SolRaised(ctx context.Context, marketCapUSD float64) float64 {
	price := a.SolPrice(ctx)
	if price <= 0 {
		return 0
	}
	return marketCapUSD / price
}

// LaunchLabStage names the SOL-raised band a token sits in.
func LaunchLabStage(solRaised float64) string {
	switch {
	case solRaised < 5:
		return "LAUNCHLAB_ULTRA_EARLY"
	case solRaised < 15:
		return "LAUNCHLAB_EARLY_MOMENTUM"
	case solRaised < 35:
		return "LAUNCHLAB_GROWTH"
	case solRaised < 55:
		return "LAUNCHLAB_MOMENTUM"
	case solRaised < 75:
		return "LAUNCHLAB_PRE_GRADUATION"
	case solRaised < 80:
		return "LAUNCHLAB_GRADUATION_WARNING"
	default:
		return "LAUNCHLAB_GRADUATION_IMMINENT"
	}
}

// StageBonus rewards catching a LaunchLab token early. Inverse of
// proximity: the earlier the stage, the larger the bonus.
func StageBonus(stage string) float64 {
	switch stage {
	case "LAUNCHLAB_ULTRA_EARLY":
		return 15
	case "LAUNCHLAB_EARLY_MOMENTUM":
		return 12
	case "LAUNCHLAB_GROWTH":
		return 8
	case "LAUNCHLAB_MOMENTUM":
		return 5
	case "LAUNCHLAB_PRE_GRADUATION":
		return 3
	case "LAUNCHLAB_GRADUATION_WARNING":
		return 1
	default:
		return 0
	}
}

// GraduationProximityBonus rewards curves close to their SOL target.
func GraduationProximityBonus(solRaised float64) float64 {
	switch {
	case solRaised >= 75:
		return 25
	case solRaised >= 60:
		return 15
	case solRaised >= 40:
		return 8
	default:
		return 0
	}
}
