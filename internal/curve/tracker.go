package curve

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Bonding Curve Tracker
//
// Tracks each pre-graduation token's market-cap progression up the curve
// and turns it into a graduation forecast:
//
//	velocity    $/hour over the last hour of samples
//	prediction  IMMINENT (<=6h), LIKELY (<=24h), POSSIBLE (<=72h),
//	            DISTANT, or STALLED_OR_DECLINING
//	confidence  min(samples/10, 1) — more observations, firmer forecast
//
// Tokens at 85%+ progress enter the graduation watch list; a completed
// graduation fires the registered signal handler exactly once (a
// graduation is a take-profit event for curve positions, and a fresh-
// graduate entry signal for everything else).

const (
	// GraduationThresholdUSD is the curve-exit market cap.
	GraduationThresholdUSD = 69_000.0
	// SupplyBurnUSD is burned at graduation and excluded from the
	// post-graduation float.
	SupplyBurnUSD = 12_000.0

	watchThresholdPct = 85.0
	maxSamples        = 50
)

type sample struct {
	at        time.Time
	marketCap float64
}

// Forecast is the tracker's read on one token.
type Forecast struct {
	VelocityPerHour   float64 `json:"velocityPerHour"`
	HoursToGraduation float64 `json:"hoursToGraduation"`
	Confidence        float64 `json:"confidence"`
	Prediction        string  `json:"prediction"`
	CurrentMarketCap  float64 `json:"currentMarketCap"`
	ProgressPct       float64 `json:"progressPct"`
}

// GraduationSignal fires when a watched token completes its curve.
type GraduationSignal struct {
	Mint                  string    `json:"mint"`
	Symbol                string    `json:"symbol,omitempty"`
	MarketCapUSD          float64   `json:"marketCapUsd"`
	TrackedForHours       float64   `json:"trackedForHours"`
	At                    time.Time `json:"at"`
}

type watchEntry struct {
	symbol     string
	addedAt    time.Time
	initialCap float64
	signalled  bool
}

type Tracker struct {
	mu         sync.Mutex
	samples    map[string][]sample
	watchlist  map[string]*watchEntry
	onGraduate func(GraduationSignal)
	log        zerolog.Logger
	now        func() time.Time
}

func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		samples:   make(map[string][]sample),
		watchlist: make(map[string]*watchEntry),
		log:       log.With().Str("component", "curve_tracker").Logger(),
		now:       time.Now,
	}
}

// OnGraduation registers the signal handler. One handler; last wins.
func (t *Tracker) OnGraduation(fn func(GraduationSignal)) {
	t.mu.Lock()
	t.onGraduate = fn
	t.mu.Unlock()
}

// Track records a market-cap observation and maintains the watch list.
// Safe to call every cycle for every bonding candidate.
func (t *Tracker) Track(mint, symbol string, marketCapUSD, progressPct float64) {
	t.mu.Lock()

	s := append(t.samples[mint], sample{at: t.now(), marketCap: marketCapUSD})
	if len(s) > maxSamples {
		s = s[len(s)-maxSamples:]
	}
	t.samples[mint] = s

	entry := t.watchlist[mint]
	if entry == nil && progressPct >= watchThresholdPct {
		entry = &watchEntry{symbol: symbol, addedAt: t.now(), initialCap: marketCapUSD}
		t.watchlist[mint] = entry
		t.log.Info().Str("mint", mint).Float64("progress_pct", progressPct).
			Msg("token added to graduation watch list")
	}

	var signal *GraduationSignal
	if entry != nil && !entry.signalled && progressPct >= 100 {
		entry.signalled = true
		signal = &GraduationSignal{
			Mint:            mint,
			Symbol:          entry.symbol,
			MarketCapUSD:    marketCapUSD,
			TrackedForHours: t.now().Sub(entry.addedAt).Hours(),
			At:              t.now(),
		}
	}
	fn := t.onGraduate
	t.mu.Unlock()

	if signal != nil && fn != nil {
		fn(*signal)
	}
}

// Forecast computes the graduation forecast for a tracked mint.
func (t *Tracker) Forecast(mint string) Forecast {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.samples[mint]
	if len(s) < 2 {
		return Forecast{Prediction: "INSUFFICIENT_DATA"}
	}

	// Velocity over the last hour; fall back to the last two samples when
	// the window is too sparse
	cutoff := t.now().Add(-time.Hour)
	recent := s[:0:0]
	for _, p := range s {
		if p.at.After(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) < 2 {
		recent = s[len(s)-2:]
	}

	span := recent[len(recent)-1].at.Sub(recent[0].at).Hours()
	if span <= 0 {
		span = 0.1
	}
	velocity := (recent[len(recent)-1].marketCap - recent[0].marketCap) / span

	current := s[len(s)-1].marketCap
	f := Forecast{
		VelocityPerHour:  velocity,
		Confidence:       math.Min(float64(len(s))/10, 1.0),
		CurrentMarketCap: current,
		ProgressPct:      current / GraduationThresholdUSD * 100,
	}

	if velocity <= 0 {
		f.Prediction = "STALLED_OR_DECLINING"
		f.HoursToGraduation = math.Inf(1)
		return f
	}

	f.HoursToGraduation = (GraduationThresholdUSD - current) / velocity
	switch {
	case f.HoursToGraduation <= 6:
		f.Prediction = "GRADUATION_IMMINENT"
	case f.HoursToGraduation <= 24:
		f.Prediction = "GRADUATION_LIKELY"
	case f.HoursToGraduation <= 72:
		f.Prediction = "GRADUATION_POSSIBLE"
	default:
		f.Prediction = "GRADUATION_DISTANT"
	}
	return f
}

// Watchlist returns the mints currently being watched for graduation.
func (t *Tracker) Watchlist() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.watchlist))
	for mint := range t.watchlist {
		out = append(out, mint)
	}
	return out
}

// StageAnalysis maps a pre-graduation market cap to its lifecycle band.
// The bands and sizing hints ride along on the candidate for the alert
// formatter; no scoring or pipeline stage reads them.
func StageAnalysis(marketCapUSD float64) models.CurveStage {
	switch {
	case marketCapUSD < 1_000:
		return models.CurveStage{Stage: "STAGE_0_ULTRA_EARLY", ProfitPotential: "10-50x", RiskLevel: "EXTREME", PositionSizePct: 2.0, Strategy: "IMMEDIATE_ENTRY"}
	case marketCapUSD < 5_000:
		return models.CurveStage{Stage: "STAGE_0_EARLY_MOMENTUM", ProfitPotential: "5-25x", RiskLevel: "VERY_HIGH", PositionSizePct: 1.5, Strategy: "MOMENTUM_ENTRY"}
	case marketCapUSD < 15_000:
		return models.CurveStage{Stage: "STAGE_1_CONFIRMED_GROWTH", ProfitPotential: "3-15x", RiskLevel: "HIGH", PositionSizePct: 4.0, Strategy: "CONVICTION_ACCUMULATION"}
	case marketCapUSD < 35_000:
		return models.CurveStage{Stage: "STAGE_2_EXPANSION", ProfitPotential: "2-8x", RiskLevel: "MEDIUM", PositionSizePct: 3.0, Strategy: "GROWTH_PARTICIPATION"}
	case marketCapUSD < 55_000:
		return models.CurveStage{Stage: "STAGE_2_LATE_GROWTH", ProfitPotential: "1.5-4x", RiskLevel: "MEDIUM", PositionSizePct: 5.0, Strategy: "PRE_GRADUATION_POSITIONING"}
	case marketCapUSD < 65_000:
		return models.CurveStage{Stage: "STAGE_3_PRE_GRADUATION", ProfitPotential: "1.2-2x", RiskLevel: "LOW", PositionSizePct: 3.0, Strategy: "GRADUATION_PLAY"}
	default:
		return models.CurveStage{Stage: "STAGE_3_GRADUATION_IMMINENT", ProfitPotential: "1.1-1.5x", RiskLevel: "VERY_LOW", PositionSizePct: 0, Strategy: "IMMEDIATE_EXIT"}
	}
}
