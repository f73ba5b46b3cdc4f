package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// OHLCV Batcher
//
// For M tokens x T timeframes, issues M*T fetch tasks under a semaphore
// whose width adapts to the circuit breaker:
//
//	width = min(cap, max(2, 10 - failure_count*2))
//
// Every task sleeps at least 300 ms before its request — the vendor's
// per-plan rate limit counts requests per rolling second and the pre-sleep
// keeps concurrent tasks from landing in one window. Rate-limit errors are
// not retried inside a cycle.

const (
	ohlcvPreSleep    = 300 * time.Millisecond
	defaultCandleCap = 20
)

type OHLCVBatcher struct {
	port           OHLCVPort
	breaker        *resilience.CircuitBreaker
	ledger         *resilience.CostLedger
	maxConcurrency int
	log            zerolog.Logger

	// test hook; production uses time.Sleep
	sleep func(time.Duration)
}

func NewOHLCVBatcher(port OHLCVPort, breaker *resilience.CircuitBreaker, ledger *resilience.CostLedger, maxConcurrency int, log zerolog.Logger) *OHLCVBatcher {
	if maxConcurrency <= 0 || maxConcurrency > 10 {
		maxConcurrency = 10
	}
	return &OHLCVBatcher{
		port:           port,
		breaker:        breaker,
		ledger:         ledger,
		maxConcurrency: maxConcurrency,
		log:            log.With().Str("component", "ohlcv_batcher").Logger(),
		sleep:          time.Sleep,
	}
}

// SetSleep overrides the inter-call pacing. Tests only.
func (b *OHLCVBatcher) SetSleep(fn func(time.Duration)) { b.sleep = fn }

// Concurrency returns the adaptive semaphore width for the current breaker
// state.
func (b *OHLCVBatcher) Concurrency() int {
	width := 10 - b.breaker.FailureCount()*2
	if width < 2 {
		width = 2
	}
	if width > b.maxConcurrency {
		width = b.maxConcurrency
	}
	return width
}

// BatchResult carries the fetched series plus coverage accounting.
type BatchResult struct {
	Series    map[string]models.OHLCVSeries
	Requested int
	Succeeded int
}

// Coverage is the fraction of (token, timeframe) tasks that returned data.
func (r BatchResult) Coverage() float64 {
	if r.Requested == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Requested)
}

// FetchBatch runs the M*T fan-out. Individual task failures are absorbed;
// the caller judges overall health from Coverage.
func (b *OHLCVBatcher) FetchBatch(ctx context.Context, addresses []string, timeframes []models.Timeframe) BatchResult {
	res := BatchResult{
		Series:    make(map[string]models.OHLCVSeries, len(addresses)),
		Requested: len(addresses) * len(timeframes),
	}
	if res.Requested == 0 {
		return res
	}

	width := b.Concurrency()
	b.log.Debug().
		Int("tokens", len(addresses)).
		Int("timeframes", len(timeframes)).
		Int("concurrency", width).
		Msg("starting OHLCV batch")

	sem := make(chan struct{}, width)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, addr := range addresses {
		res.Series[addr] = make(models.OHLCVSeries, len(timeframes))
		for _, tf := range timeframes {
			wg.Add(1)
			go func(addr string, tf models.Timeframe) {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()

				b.sleep(ohlcvPreSleep)

				candles, err := b.port.FetchOHLCV(ctx, addr, tf, defaultCandleCap)
				b.ledger.AddOHLCVCallsMade(1)
				if err != nil {
					b.log.Warn().Err(err).Str("address", addr).Str("timeframe", string(tf)).
						Msg("OHLCV fetch failed")
					return
				}

				mu.Lock()
				res.Series[addr][tf] = candles
				res.Succeeded++
				mu.Unlock()
			}(addr, tf)
		}
	}
	wg.Wait()

	b.log.Info().
		Int("requested", res.Requested).
		Int("succeeded", res.Succeeded).
		Float64("coverage", res.Coverage()).
		Msg("OHLCV batch complete")
	return res
}

// FetchOne is the single-token convenience used by ad-hoc analysis paths.
func (b *OHLCVBatcher) FetchOne(ctx context.Context, address string, tf models.Timeframe) ([]models.Candle, error) {
	b.sleep(ohlcvPreSleep)
	candles, err := b.port.FetchOHLCV(ctx, address, tf, defaultCandleCap)
	b.ledger.AddOHLCVCallsMade(1)
	return candles, err
}

// ApplyTimeframes derives candidate fields from fetched candles, using the
// last 20:
//
//	volume_<tf>        mean of the final 3 candles' volumes
//	price_change_<tf>  last-close vs previous-close, in percent
//	trades_<tf>        volume / (last_close * 100) — a coarse estimator,
//	                   good enough for tiering, not for accounting
//
// Only the short timeframes deep analysis fetched are overwritten; longer
// windows keep their discovery-metadata values.
func ApplyTimeframes(c *models.Candidate, series models.OHLCVSeries) {
	for tf, candles := range series {
		if len(candles) == 0 {
			continue
		}
		vol := recentVolume(candles)
		change := lastChange(candles)
		trades := estimateTrades(candles)

		switch tf {
		case models.Timeframe15m:
			c.Volume15m = vol
			c.PriceChange15m = change
			c.Trades15m = trades
		case models.Timeframe30m:
			c.Volume30m = vol
			c.PriceChange30m = change
			c.Trades30m = trades
		case models.Timeframe5m:
			c.Volume5m = vol
			c.PriceChange5m = change
			c.Trades5m = trades
		case models.Timeframe1h:
			c.Volume1h = vol
			c.PriceChange1h = change
			c.Trades1h = trades
		}
	}
}

func recentVolume(candles []models.Candle) float64 {
	n := len(candles)
	take := 3
	if n < take {
		take = n
	}
	sum := 0.0
	for _, c := range candles[n-take:] {
		sum += c.Volume
	}
	return sum / float64(take)
}

func lastChange(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 || candles[n-2].Close == 0 {
		return 0
	}
	return (candles[n-1].Close - candles[n-2].Close) / candles[n-2].Close * 100
}

func estimateTrades(candles []models.Candle) int64 {
	last := candles[len(candles)-1]
	if last.Close == 0 {
		return 0
	}
	return int64(recentVolume(candles) / (last.Close * 100))
}
