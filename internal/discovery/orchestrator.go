package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/sources"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Discovery Orchestrator
//
// Fans out to every registered source adapter in parallel, each under its
// own timeout, and merges the results. Source failures never abort a
// cycle: a dead feed contributes nothing and the cycle moves on. Adapters
// that expose a cached view (the on-chain detector) fall back to it when
// the live path fails.
//
// Deduplication is by address, first occurrence wins, where "first" is
// adapter registration order — the registration list is ordered by how
// early each source tends to see a token, so the earliest source's tag is
// the one preserved.

// CachedFallback is implemented by adapters that can serve stale data
// when their live path is unavailable.
type CachedFallback interface {
	Cached() []models.Candidate
}

type Orchestrator struct {
	adapters []sources.Adapter
	log      zerolog.Logger
}

func NewOrchestrator(log zerolog.Logger, adapters ...sources.Adapter) *Orchestrator {
	return &Orchestrator{
		adapters: adapters,
		log:      log.With().Str("component", "discovery").Logger(),
	}
}

type sourceResult struct {
	candidates []models.Candidate
	err        error
}

// Discover runs one full discovery pass and returns the unique candidate
// list, newest first.
func (o *Orchestrator) Discover(ctx context.Context) []models.Candidate {
	results := make([]sourceResult, len(o.adapters))
	done := make(chan int, len(o.adapters))

	for i, adapter := range o.adapters {
		go func(i int, adapter sources.Adapter) {
			defer func() { done <- i }()

			srcCtx, cancel := context.WithTimeout(ctx, adapter.Timeout())
			defer cancel()

			candidates, err := adapter.Discover(srcCtx)
			if err == nil && srcCtx.Err() != nil {
				err = srcCtx.Err()
			}
			results[i] = sourceResult{candidates: candidates, err: err}
		}(i, adapter)
	}
	for range o.adapters {
		<-done
	}

	// Merge in registration order so dedupe precedence is deterministic
	merged := make([]models.Candidate, 0, 64)
	for i, adapter := range o.adapters {
		res := results[i]
		if res.err != nil {
			o.log.Warn().Err(res.err).Str("source", adapter.Name()).
				Msg("source failed, continuing without it")

			if fb, ok := adapter.(CachedFallback); ok {
				cached := fb.Cached()
				if len(cached) > 0 {
					o.log.Info().Str("source", adapter.Name()).Int("cached", len(cached)).
						Msg("using cached data for failed source")
					merged = append(merged, cached...)
				}
			}
			continue
		}
		merged = append(merged, res.candidates...)
	}

	unique := dedupe(merged)

	sort.SliceStable(unique, func(a, b int) bool {
		return newness(unique[a]).After(newness(unique[b]))
	})

	o.log.Info().
		Int("raw", len(merged)).
		Int("unique", len(unique)).
		Int("sources", len(o.adapters)).
		Msg("discovery complete")
	return unique
}

// dedupe collapses duplicates onto the first occurrence, keeping that
// occurrence's source tag and fields.
func dedupe(in []models.Candidate) []models.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Candidate, 0, len(in))
	for _, c := range in {
		if _, dup := seen[c.Address]; dup {
			continue
		}
		seen[c.Address] = struct{}{}
		out = append(out, c)
	}
	return out
}

// newness orders candidates for the "newest first" sort: graduation time
// when known, discovery time otherwise.
func newness(c models.Candidate) time.Time {
	if c.GraduatedAt != nil {
		return *c.GraduatedAt
	}
	return c.DiscoveredAt
}
