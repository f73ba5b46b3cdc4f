package scoring

import (
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Velocity Scoring
//
// Composes three bonus families into a single velocity score in [0,1]:
//
//	volume acceleration   <= 0.40   is short-window volume outpacing long windows?
//	momentum cascade      <= 0.35   are price changes stacked across timeframes?
//	activity surge        <= 0.25   is trade count and trader diversity spiking?
//
// The acceleration test projects each short window onto the next longer one
// (5m*12 vs 1h, 1h*6 vs 6h, 6h*4 vs 24h) and rewards projection ratios of
// 1.5x/2x/3x. A consistency bonus lands when two or more windows accelerate
// at once — one hot candle is noise, two aligned windows is a trend.

const (
	maxVolumeAccelBonus   = 0.40
	maxMomentumBonus      = 0.35
	maxActivityBonus      = 0.25
	consistencyBonus      = 0.05
	cascadeAlignmentBonus = 0.05
)

// VelocityResult breaks the composite down for the scoring breakdown.
type VelocityResult struct {
	Score            float64  `json:"score"` // 0-1
	VolumeAccel      float64  `json:"volumeAccel"`
	MomentumCascade  float64  `json:"momentumCascade"`
	ActivitySurge    float64  `json:"activitySurge"`
	AcceleratingTFs  int      `json:"acceleratingTimeframes"`
	Signals          []string `json:"signals,omitempty"`
}

// ComputeVelocity scores a candidate from already-present timeframe fields.
// No network access; safe at any stage.
func ComputeVelocity(c *models.Candidate) VelocityResult {
	res := VelocityResult{}

	res.VolumeAccel, res.AcceleratingTFs = volumeAcceleration(c, &res.Signals)
	res.MomentumCascade = momentumCascade(c, &res.Signals)
	res.ActivitySurge = activitySurge(c, &res.Signals)

	res.Score = res.VolumeAccel + res.MomentumCascade + res.ActivitySurge
	if res.Score > 1 {
		res.Score = 1
	}
	return res
}

// projectionBonus rewards a short window whose run-rate exceeds the longer
// window it projects onto.
func projectionBonus(shortVol, factor, longVol float64) float64 {
	if shortVol <= 0 || longVol <= 0 {
		return 0
	}
	ratio := (shortVol * factor) / longVol
	switch {
	case ratio >= 3:
		return 0.15
	case ratio >= 2:
		return 0.10
	case ratio >= 1.5:
		return 0.05
	}
	return 0
}

func volumeAcceleration(c *models.Candidate, signals *[]string) (float64, int) {
	bonus := 0.0
	accelerating := 0

	if b := projectionBonus(c.Volume5m, 12, c.Volume1h); b > 0 {
		bonus += b
		accelerating++
		*signals = append(*signals, "volume_accel_5m")
	}
	if b := projectionBonus(c.Volume1h, 6, c.Volume6h); b > 0 {
		bonus += b
		accelerating++
		*signals = append(*signals, "volume_accel_1h")
	}
	if b := projectionBonus(c.Volume6h, 4, c.Volume24h); b > 0 {
		bonus += b
		accelerating++
		*signals = append(*signals, "volume_accel_6h")
	}

	if accelerating >= 2 {
		bonus += consistencyBonus
		*signals = append(*signals, "volume_accel_consistent")
	}
	if bonus > maxVolumeAccelBonus {
		bonus = maxVolumeAccelBonus
	}
	return bonus, accelerating
}

func momentumCascade(c *models.Candidate, signals *[]string) float64 {
	bonus := 0.0

	// Immediate momentum
	switch {
	case c.PriceChange5m >= 10:
		bonus += 0.12
	case c.PriceChange5m >= 5:
		bonus += 0.08
	case c.PriceChange5m > 0:
		bonus += 0.04
	}

	// Mid window: best of 15m/30m
	mid := c.PriceChange15m
	if c.PriceChange30m > mid {
		mid = c.PriceChange30m
	}
	switch {
	case mid >= 15:
		bonus += 0.10
	case mid >= 7:
		bonus += 0.06
	case mid > 0:
		bonus += 0.03
	}

	// Hourly trend
	switch {
	case c.PriceChange1h >= 25:
		bonus += 0.08
	case c.PriceChange1h >= 10:
		bonus += 0.05
	case c.PriceChange1h > 0:
		bonus += 0.02
	}

	positiveShort := 0
	for _, ch := range []float64{c.PriceChange5m, c.PriceChange15m, c.PriceChange30m} {
		if ch > 0 {
			positiveShort++
		}
	}
	if positiveShort >= 3 {
		bonus += cascadeAlignmentBonus
		*signals = append(*signals, "momentum_cascade_aligned")
	}
	if bonus > 0 {
		*signals = append(*signals, "momentum_positive")
	}
	if bonus > maxMomentumBonus {
		bonus = maxMomentumBonus
	}
	return bonus
}

func activitySurge(c *models.Candidate, signals *[]string) float64 {
	bonus := 0.0

	switch {
	case c.Trades5m >= 50:
		bonus += 0.10
	case c.Trades5m >= 20:
		bonus += 0.07
	case c.Trades5m >= 5:
		bonus += 0.03
	}

	switch {
	case c.Trades1h >= 500:
		bonus += 0.08
	case c.Trades1h >= 200:
		bonus += 0.05
	case c.Trades1h >= 50:
		bonus += 0.02
	}

	// Trader diversity: many distinct wallets means the surge is not one bot
	switch {
	case c.UniqueTraders24 >= 300:
		bonus += 0.07
	case c.UniqueTraders24 >= 100:
		bonus += 0.04
	case c.UniqueTraders24 >= 30:
		bonus += 0.02
	}

	if bonus > 0 {
		*signals = append(*signals, "activity_surge")
	}
	if bonus > maxActivityBonus {
		bonus = maxActivityBonus
	}
	return bonus
}
