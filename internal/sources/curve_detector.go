package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/solclient"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// On-chain curve detector. Verifies bonding-curve progress against the
// chain itself instead of trusting feed numbers. Two modes:
//
//	heuristic  estimate progress from the cached market cap against the
//	           graduation threshold; zero RPC cost
//	accurate   read the curve accounts over RPC (batched) and use real
//	           reserve state
//
// The watch set is the curve cache: every bonding-feed candidate seen in
// the last day. Only curves at 85%+ progress are emitted — this source
// exists to catch graduations the feeds report late.

const detectorEmitThreshold = 85.0

type CurveDetectorAdapter struct {
	client  *solclient.Client
	cache   *CurveCache
	mode    string // "heuristic" or "accurate"
	timeout time.Duration
	log     zerolog.Logger
}

func NewCurveDetectorAdapter(client *solclient.Client, cache *CurveCache, mode string, timeout time.Duration, log zerolog.Logger) *CurveDetectorAdapter {
	return &CurveDetectorAdapter{
		client:  client,
		cache:   cache,
		mode:    mode,
		timeout: timeout,
		log:     log.With().Str("component", "curve_detector").Logger(),
	}
}

func (a *CurveDetectorAdapter) Name() string           { return "curve_detector" }
func (a *CurveDetectorAdapter) Source() models.Source  { return models.SourceCurveDetector }
func (a *CurveDetectorAdapter) Timeout() time.Duration { return a.timeout }

func (a *CurveDetectorAdapter) Discover(ctx context.Context) ([]models.Candidate, error) {
	watched := a.cache.Fresh()
	if len(watched) == 0 {
		return nil, nil
	}

	if a.mode != "accurate" {
		return a.heuristicScan(watched), nil
	}

	mints := make([]string, 0, len(watched))
	byMint := make(map[string]CachedCurve, len(watched))
	for _, e := range watched {
		mints = append(mints, e.Mint)
		byMint[e.Mint] = e
	}

	states, err := a.client.FetchCurveStates(ctx, mints)
	if err != nil {
		return nil, fmt.Errorf("%w: curve scan: %v", ErrSourceUnavailable, err)
	}

	now := time.Now()
	var out []models.Candidate
	for mint, state := range states {
		cached := byMint[mint]
		a.cache.Put(CachedCurve{
			Mint:         mint,
			Symbol:       cached.Symbol,
			Name:         cached.Name,
			ProgressPct:  state.ProgressPct,
			SolRaised:    state.SolRaised,
			MarketCapUSD: cached.MarketCapUSD,
		})
		if state.ProgressPct < detectorEmitThreshold || state.Complete {
			continue
		}
		out = append(out, models.Candidate{
			Address:                 mint,
			Symbol:                  cached.Symbol,
			Name:                    cached.Name,
			Source:                  models.SourceCurveDetector,
			DiscoveredAt:            now,
			MarketCapUSD:            cached.MarketCapUSD,
			BondingCurveProgressPct: state.ProgressPct,
			SolRaised:               state.SolRaised,
			GraduationThresholdUSD:  graduationThresholdUSD,
		})
	}

	a.log.Debug().
		Int("watched", len(watched)).
		Int("verified", len(states)).
		Int("emitted", len(out)).
		Msg("on-chain curve scan complete")
	return out, nil
}

// heuristicScan estimates progress from cached market caps; fast but only
// as good as the last feed data.
func (a *CurveDetectorAdapter) heuristicScan(watched []CachedCurve) []models.Candidate {
	now := time.Now()
	var out []models.Candidate
	for _, e := range watched {
		progress := e.ProgressPct
		if e.MarketCapUSD > 0 {
			estimated := e.MarketCapUSD / graduationThresholdUSD * 100
			if estimated > progress {
				progress = estimated
			}
		}
		if progress < detectorEmitThreshold {
			continue
		}
		out = append(out, models.Candidate{
			Address:                 e.Mint,
			Symbol:                  e.Symbol,
			Name:                    e.Name,
			Source:                  models.SourceCurveDetector,
			DiscoveredAt:            now,
			MarketCapUSD:            e.MarketCapUSD,
			BondingCurveProgressPct: clampProgress(progress),
			SolRaised:               e.SolRaised,
			GraduationThresholdUSD:  graduationThresholdUSD,
		})
	}
	return out
}

// Cached emits the watch set as cached-curve candidates; the orchestrator
// falls back to this when the live scan times out.
func (a *CurveDetectorAdapter) Cached() []models.Candidate {
	now := time.Now()
	var out []models.Candidate
	for _, e := range a.cache.Fresh() {
		if e.ProgressPct < detectorEmitThreshold {
			continue
		}
		out = append(out, models.Candidate{
			Address:                 e.Mint,
			Symbol:                  e.Symbol,
			Name:                    e.Name,
			Source:                  models.SourceCachedCurve,
			DiscoveredAt:            now,
			MarketCapUSD:            e.MarketCapUSD,
			BondingCurveProgressPct: e.ProgressPct,
			SolRaised:               e.SolRaised,
			GraduationThresholdUSD:  graduationThresholdUSD,
		})
	}
	return out
}
