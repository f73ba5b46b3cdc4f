package sources

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

func TestLiveLaunchAdapter_DrainsQueue(t *testing.T) {
	a := NewLiveLaunchAdapter(8, time.Second, zerolog.Nop())

	a.Publish(LaunchEvent{
		Mint:         "GemMint111111111111111111111111111111111pump",
		Symbol:       "NEW",
		MarketCapUSD: 800,
		LaunchedAt:   time.Now().Add(-3 * time.Minute),
	})
	a.Publish(LaunchEvent{Mint: "not-an-address", Symbol: "BAD"})

	out, err := a.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 valid candidate, got %d", len(out))
	}
	if out[0].Source != models.SourceLiveLaunch {
		t.Errorf("source = %s, want live-launch", out[0].Source)
	}
	if out[0].AgeMinutes < 2.9 || out[0].AgeMinutes > 3.5 {
		t.Errorf("age = %v min, want ~3", out[0].AgeMinutes)
	}

	// The queue is drained: a second discover returns nothing
	out, _ = a.Discover(context.Background())
	if len(out) != 0 {
		t.Errorf("second discover should be empty, got %d", len(out))
	}
}

func TestLiveLaunchAdapter_FullBufferDrops(t *testing.T) {
	a := NewLiveLaunchAdapter(2, time.Second, zerolog.Nop())
	for i := 0; i < 5; i++ {
		a.Publish(LaunchEvent{
			Mint:       "GemMint111111111111111111111111111111111pump",
			LaunchedAt: time.Now(),
		})
	}

	out, _ := a.Discover(context.Background())
	if len(out) != 2 {
		t.Errorf("buffered 2, got %d — Publish must drop, not block", len(out))
	}
}
