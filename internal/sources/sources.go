package sources

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Source adapters. One per external feed; each owns its HTTP/RPC client,
// retry policy, and field mapping into the common Candidate shape. The
// discovery orchestrator treats them as opaque capability providers.

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrRateLimited       = errors.New("rate limited")
)

// Adapter is the uniform discovery contract.
type Adapter interface {
	Name() string
	Source() models.Source
	// Discover returns this feed's current candidates. May fail; the
	// orchestrator absorbs errors as an empty contribution.
	Discover(ctx context.Context) ([]models.Candidate, error)
	// Timeout is this adapter's per-cycle budget.
	Timeout() time.Duration
}

// base58Address matches a canonical 44-character Solana mint.
var base58Address = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{44}$`)

// ValidAddress reports whether addr looks like a real mint address.
func ValidAddress(addr string) bool {
	return base58Address.MatchString(addr)
}

// cleanSymbol rejects symbols with markup or whitespace junk that launch
// spam tends to carry.
var cleanSymbolRe = regexp.MustCompile(`^[A-Za-z0-9$_.-]{1,15}$`)

func CleanSymbol(sym string) bool {
	return cleanSymbolRe.MatchString(sym)
}
