package sources

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Live launch stream adapter. Launch events arrive on a buffered queue
// from whatever push transport is wired upstream (websocket subscription,
// log listener); Discover drains whatever accumulated since the last
// cycle without ever blocking the orchestrator.

// LaunchEvent is a minimal just-launched notification.
type LaunchEvent struct {
	Mint         string
	Symbol       string
	Name         string
	MarketCapUSD float64
	LaunchedAt   time.Time
}

type LiveLaunchAdapter struct {
	events  chan LaunchEvent
	timeout time.Duration
	log     zerolog.Logger
}

func NewLiveLaunchAdapter(buffer int, timeout time.Duration, log zerolog.Logger) *LiveLaunchAdapter {
	if buffer <= 0 {
		buffer = 256
	}
	return &LiveLaunchAdapter{
		events:  make(chan LaunchEvent, buffer),
		timeout: timeout,
		log:     log.With().Str("component", "live_launch_adapter").Logger(),
	}
}

// Publish enqueues a launch event. Drops on a full buffer — a missed
// launch shows up on the bonding feed within minutes anyway.
func (a *LiveLaunchAdapter) Publish(ev LaunchEvent) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn().Str("mint", ev.Mint).Msg("launch queue full, event dropped")
	}
}

func (a *LiveLaunchAdapter) Name() string           { return "live_launch" }
func (a *LiveLaunchAdapter) Source() models.Source  { return models.SourceLiveLaunch }
func (a *LiveLaunchAdapter) Timeout() time.Duration { return a.timeout }

func (a *LiveLaunchAdapter) Discover(ctx context.Context) ([]models.Candidate, error) {
	now := time.Now()
	var out []models.Candidate
	for {
		select {
		case ev := <-a.events:
			if !ValidAddress(ev.Mint) {
				continue
			}
			age := now.Sub(ev.LaunchedAt)
			if age < 0 {
				age = 0
			}
			out = append(out, models.Candidate{
				Address:      ev.Mint,
				Symbol:       ev.Symbol,
				Name:         ev.Name,
				Source:       models.SourceLiveLaunch,
				DiscoveredAt: now,
				MarketCapUSD: ev.MarketCapUSD,
				AgeMinutes:   age.Minutes(),
			})
		default:
			return out, nil
		}
	}
}
