package enrich

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Capability ports the enricher consumes. Each vendor client implements
// these behind its own HTTP stack; the enricher never sees vendor wire
// formats, only the common metadata shape.

var (
	ErrRateLimited  = errors.New("rate limited")
	ErrNotAvailable = errors.New("endpoint not available")
)

// Metadata is the vendor-neutral enrichment record for one token.
type Metadata struct {
	PriceUSD        float64
	MarketCapUSD    float64
	LiquidityUSD    float64
	Volume5m        float64
	Volume15m       float64
	Volume30m       float64
	Volume1h        float64
	Volume6h        float64
	Volume24h       float64
	Trades5m        int64
	Trades1h        int64
	Trades24h       int64
	PriceChange5m   float64
	PriceChange1h   float64
	PriceChange24h  float64
	UniqueTraders24 int64
	HolderCount     int64
	SecurityScore   float64
	GraduatedAt     *time.Time

	Err error // per-token failure inside an otherwise successful batch
}

// CostModel declares what a vendor charges, in its own cost units.
// Batch cost is base + N^exponent; individual cost is perToken * N.
type CostModel struct {
	BaseCU     float64
	Exponent   float64
	PerTokenCU float64
}

// DefaultCostModel matches the primary vendor's published pricing.
var DefaultCostModel = CostModel{BaseCU: 5, Exponent: 0.8, PerTokenCU: 30}

func (m CostModel) BatchCost(n int) float64 {
	if n <= 0 {
		return 0
	}
	return m.BaseCU + math.Pow(float64(n), m.Exponent)
}

func (m CostModel) IndividualCost(n int) float64 {
	return m.PerTokenCU * float64(n)
}

// MetadataBatchPort retrieves metadata for N tokens in one call.
type MetadataBatchPort interface {
	FetchMetadataBatch(ctx context.Context, addresses []string) (map[string]Metadata, error)
	CostModel() CostModel
	Name() string
}

// MetadataPort is the per-token fallback when no batch endpoint survives.
type MetadataPort interface {
	FetchMetadata(ctx context.Context, address string) (Metadata, error)
}

// OHLCVPort fetches candles for one token and timeframe. Batch fan-out
// across tokens and timeframes is the enricher's job, not the vendor's.
type OHLCVPort interface {
	FetchOHLCV(ctx context.Context, address string, tf models.Timeframe, limit int) ([]models.Candle, error)
}

// HolderPort returns top-holder supply percentages for deep analysis.
type HolderPort interface {
	FetchTopHolderPercentages(ctx context.Context, address string) ([]float64, error)
}
