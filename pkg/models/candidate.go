package models

import "time"

// Source identifies which discovery feed produced a candidate.
type Source string

const (
	SourceTrending      Source = "trending-feed"
	SourceGraduated     Source = "graduated-feed"
	SourceBonding       Source = "bonding-feed"
	SourceCurveDetector Source = "curve-detector"
	SourceLiveLaunch    Source = "live-launch"
	SourceCachedCurve   Source = "cached-curve"
)

// TriageStage marks how far a candidate has advanced through the funnel.
// Stages only ever advance; a candidate never moves backwards.
type TriageStage int

const (
	StageDiscovered TriageStage = iota
	StageTriaged
	StageEnhanced
	StageValidated
	StageDeepAnalyzed
)

func (s TriageStage) String() string {
	switch s {
	case StageDiscovered:
		return "discovered"
	case StageTriaged:
		return "triaged"
	case StageEnhanced:
		return "enhanced"
	case StageValidated:
		return "validated"
	case StageDeepAnalyzed:
		return "deep_analyzed"
	}
	return "unknown"
}

// ConfidenceLevel is the age-aware confidence label attached to a velocity score.
type ConfidenceLevel string

const (
	ConfidenceEarlyDetection ConfidenceLevel = "EARLY_DETECTION"
	ConfidenceHigh           ConfidenceLevel = "HIGH"
	ConfidenceMedium         ConfidenceLevel = "MEDIUM"
	ConfidenceLow            ConfidenceLevel = "LOW"
	ConfidenceVeryLow        ConfidenceLevel = "VERY_LOW"
	ConfidenceError          ConfidenceLevel = "ERROR"
)

// AgeCategory buckets token age for the confidence model.
type AgeCategory string

const (
	AgeUltraEarly  AgeCategory = "ULTRA_EARLY"  // <= 30 min
	AgeEarly       AgeCategory = "EARLY"        // 30 min - 2 h
	AgeEstablished AgeCategory = "ESTABLISHED"  // 2 - 12 h
	AgeMature      AgeCategory = "MATURE"       // > 12 h
)

// VelocityConfidence qualifies a velocity score by how much timeframe
// coverage the token's age makes reasonable to expect. Early tokens are
// not punished for data they could not possibly have yet.
type VelocityConfidence struct {
	Level               ConfidenceLevel `json:"level"`
	ConfidenceScore     float64         `json:"confidenceScore"`     // 0-1
	CoveragePercentage  float64         `json:"coveragePercentage"`  // 0-100
	ThresholdAdjustment float64         `json:"thresholdAdjustment"` // multiplier on the alert threshold
	AgeCategory         AgeCategory     `json:"ageCategory"`
	AgeMinutes          float64         `json:"ageMinutes"`
	Reason              string          `json:"reason,omitempty"`
}

// CurveStage is the bonding-curve lifecycle band a pre-graduation token sits in.
type CurveStage struct {
	Stage           string  `json:"stage"`
	ProfitPotential string  `json:"profitPotential"`
	RiskLevel       string  `json:"riskLevel"`
	PositionSizePct float64 `json:"positionSizePct"`
	Strategy        string  `json:"strategy"`
}

// Candidate is the record that accumulates data as a token moves through
// the funnel. It is keyed by Address (44-char base58 mint).
type Candidate struct {
	// Identity
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Source  Source `json:"source"`

	DiscoveredAt time.Time `json:"discoveredAt"`

	// Market
	PriceUSD        float64 `json:"priceUsd"`
	MarketCapUSD    float64 `json:"marketCapUsd"`
	LiquidityUSD    float64 `json:"liquidityUsd"`
	Volume5m        float64 `json:"volume5m"`
	Volume15m       float64 `json:"volume15m"`
	Volume30m       float64 `json:"volume30m"`
	Volume1h        float64 `json:"volume1h"`
	Volume6h        float64 `json:"volume6h"`
	Volume24h       float64 `json:"volume24h"`
	Trades5m        int64   `json:"trades5m"`
	Trades15m       int64   `json:"trades15m"`
	Trades30m       int64   `json:"trades30m"`
	Trades1h        int64   `json:"trades1h"`
	Trades6h        int64   `json:"trades6h"`
	Trades24h       int64   `json:"trades24h"`
	PriceChange5m   float64 `json:"priceChange5m"`
	PriceChange15m  float64 `json:"priceChange15m"`
	PriceChange30m  float64 `json:"priceChange30m"`
	PriceChange1h   float64 `json:"priceChange1h"`
	PriceChange6h   float64 `json:"priceChange6h"`
	PriceChange24h  float64 `json:"priceChange24h"`
	UniqueTraders24 int64   `json:"uniqueTraders24h"`
	HolderCount     int64   `json:"holderCount"`
	SecurityScore   float64 `json:"securityScore"` // 0-100, from enrichment metadata

	// Bonding curve (pre-graduation sources only)
	BondingCurveProgressPct float64 `json:"bondingCurveProgressPct"` // 0-100
	GraduationThresholdUSD  float64 `json:"graduationThresholdUsd"`
	SolRaised               float64 `json:"solRaised,omitempty"`

	// Graduation age
	GraduatedAt          *time.Time `json:"graduatedAt,omitempty"`
	HoursSinceGraduation float64    `json:"hoursSinceGraduation"`
	IsFreshGraduate      bool       `json:"isFreshGraduate"`  // age < 1h
	IsRecentGraduate     bool       `json:"isRecentGraduate"` // 1h < age <= 6h
	AgeMinutes           float64    `json:"ageMinutes"`       // minutes since launch/graduation, whichever applies

	// Derived (computed post-enrichment)
	AvgTradeSize       float64 `json:"avgTradeSize"`
	LiquidityMcapRatio float64 `json:"liquidityMcapRatio"`
	DailyTurnoverRatio float64 `json:"dailyTurnoverRatio"`

	// Pipeline metadata
	DiscoveryPriorityScore float64     `json:"discoveryPriorityScore"`
	EnhancedScore          float64     `json:"enhancedScore"`
	ValidationScore        float64     `json:"validationScore"`
	FinalScore             float64     `json:"finalScore"`
	EarlyGemScore          float64     `json:"earlyGemScore,omitempty"`
	Stage                  TriageStage `json:"triageStage"`
	DeepAnalysisPhase      bool        `json:"deepAnalysisPhase"`
	Enriched               bool        `json:"enriched"`
	EnhancementMethod      string      `json:"enhancementMethod,omitempty"`

	VelocityConfidence *VelocityConfidence `json:"velocityConfidence,omitempty"`
	CurveStage         *CurveStage         `json:"curveStage,omitempty"`

	// Error annotations. A candidate that fails a stage keeps its previous
	// score and carries the failure here instead of being dropped.
	Stage3Error string `json:"stage3Error,omitempty"`
	Stage4Error string `json:"stage4Error,omitempty"`
	OHLCVError  string `json:"ohlcvError,omitempty"`
}

// AdvanceStage moves the candidate forward. Regressions are ignored so a
// re-scored candidate can never lose progress.
func (c *Candidate) AdvanceStage(s TriageStage) {
	if s > c.Stage {
		c.Stage = s
	}
}

// Age reports the candidate's age. Graduated tokens age from graduation,
// pre-graduation tokens from discovery.
func (c *Candidate) Age(now time.Time) time.Duration {
	if c.GraduatedAt != nil {
		return now.Sub(*c.GraduatedAt)
	}
	if !c.DiscoveredAt.IsZero() {
		return now.Sub(c.DiscoveredAt)
	}
	return time.Duration(c.AgeMinutes * float64(time.Minute))
}

// RefreshDerived recomputes the post-enrichment derived metrics.
func (c *Candidate) RefreshDerived() {
	trades := c.Trades24h
	if trades < 1 {
		trades = 1
	}
	c.AvgTradeSize = c.Volume24h / float64(trades)
	if c.MarketCapUSD > 0 {
		c.LiquidityMcapRatio = c.LiquidityUSD / c.MarketCapUSD
		c.DailyTurnoverRatio = c.Volume24h / c.MarketCapUSD
	}
}

// RefreshAgeFlags derives the graduation age flags from GraduatedAt.
func (c *Candidate) RefreshAgeFlags(now time.Time) {
	if c.GraduatedAt == nil {
		return
	}
	age := now.Sub(*c.GraduatedAt)
	c.HoursSinceGraduation = age.Hours()
	if c.HoursSinceGraduation < 0 {
		c.HoursSinceGraduation = 0
	}
	c.IsFreshGraduate = c.HoursSinceGraduation < 1.0
	c.IsRecentGraduate = !c.IsFreshGraduate && c.HoursSinceGraduation <= 6.0
	c.AgeMinutes = c.HoursSinceGraduation * 60
}
