package scoring

import (
	"fmt"
	"sort"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Holder Concentration
//
// Distribution analysis over a token's top holder balances. Runs only in
// deep analysis — holder data is a paid call.
//
// Metrics:
//   Gini        wealth inequality, 0 (uniform) to 1 (one holder owns all)
//   HHI         Herfindahl-Hirschman index over supply shares
//   CR4         combined share of the top 4 holders
//   whales      holders at or above 2% of supply: count and combined share
//               (no per-tier breakdown)
//
// Level composition (0-100 internal score):
//   gini: >0.8 +40, >0.6 +30, >0.4 +20, else +10
//   hhi:  >0.25 +30, >0.15 +20, >0.1 +10
//   cr4:  >0.8 +30, >0.6 +20, >0.4 +10
//   >=80 CRITICAL, >=60 HIGH, >=40 MEDIUM, else LOW

const (
	whaleMegaPct   = 10.0
	whaleLargePct  = 5.0
	whaleMediumPct = 2.0
)

// AnalyzeHolders computes the concentration record from top-holder supply
// percentages (0-100 each). Returns nil when no usable data was provided.
func AnalyzeHolders(percentages []float64) *models.HolderConcentration {
	shares := make([]float64, 0, len(percentages))
	for _, p := range percentages {
		if p > 0 {
			shares = append(shares, p/100)
		}
	}
	if len(shares) == 0 {
		return nil
	}
	sort.Float64s(shares)

	hc := &models.HolderConcentration{
		Gini: gini(shares),
		HHI:  hhi(shares),
		CR4:  cr4(shares) * 100,
	}

	// Whale census over the raw percentages
	for _, p := range percentages {
		if p >= whaleMediumPct {
			hc.WhaleCount++
			hc.WhalePercentage += p
		}
	}

	hc.ConcentrationLevel = concentrationLevel(hc.Gini, hc.HHI, hc.CR4/100)
	hc.ConcentrationScore = concentrationScore(hc)
	hc.RiskFactors = concentrationRiskFactors(hc)
	return hc
}

// gini over ascending shares. Standard mean-difference formulation.
func gini(sorted []float64) float64 {
	n := len(sorted)
	total := 0.0
	for _, s := range sorted {
		total += s
	}
	if total == 0 {
		return 0
	}
	cumsum := 0.0
	for i, s := range sorted {
		cumsum += s * float64(2*(i+1)-n-1)
	}
	g := cumsum / (float64(n) * total)
	if g < 0 {
		// Float rounding on equal shares can land just below zero
		g = 0
	}
	return g
}

func hhi(shares []float64) float64 {
	total := 0.0
	for _, s := range shares {
		total += s
	}
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range shares {
		norm := s / total
		sum += norm * norm
	}
	return sum
}

// cr4 returns the top-4 combined share as a fraction of observed supply.
func cr4(sortedAsc []float64) float64 {
	total := 0.0
	for _, s := range sortedAsc {
		total += s
	}
	if total == 0 {
		return 0
	}
	if len(sortedAsc) <= 4 {
		return 1.0
	}
	top := 0.0
	for i := len(sortedAsc) - 1; i >= len(sortedAsc)-4; i-- {
		top += sortedAsc[i]
	}
	return top / total
}

func concentrationLevel(gini, hhi, cr4 float64) string {
	score := 0
	switch {
	case gini > 0.8:
		score += 40
	case gini > 0.6:
		score += 30
	case gini > 0.4:
		score += 20
	default:
		score += 10
	}
	switch {
	case hhi > 0.25:
		score += 30
	case hhi > 0.15:
		score += 20
	case hhi > 0.1:
		score += 10
	}
	switch {
	case cr4 > 0.8:
		score += 30
	case cr4 > 0.6:
		score += 20
	case cr4 > 0.4:
		score += 10
	}

	switch {
	case score >= 80:
		return "CRITICAL"
	case score >= 60:
		return "HIGH"
	case score >= 40:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// concentrationScore maps the analysis to 0-10, higher = healthier
// distribution. Folded into safety validation.
func concentrationScore(hc *models.HolderConcentration) float64 {
	score := 10.0
	score -= hc.Gini * 5 // inequality penalty
	switch hc.ConcentrationLevel {
	case "CRITICAL":
		score -= 4
	case "HIGH":
		score -= 2.5
	case "MEDIUM":
		score -= 1
	}
	if hc.WhalePercentage >= 70 {
		score -= 2
	} else if hc.WhalePercentage >= 50 {
		score -= 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func concentrationRiskFactors(hc *models.HolderConcentration) []string {
	var factors []string
	if hc.Gini > 0.8 {
		factors = append(factors, "extremely high wealth inequality")
	} else if hc.Gini > 0.6 {
		factors = append(factors, "high wealth inequality")
	}
	if hc.WhalePercentage >= 70 {
		factors = append(factors, fmt.Sprintf("whales control %.0f%% of supply", hc.WhalePercentage))
	} else if hc.WhaleCount >= 3 && hc.WhalePercentage >= 50 {
		factors = append(factors, "multiple whales control majority")
	}
	if hc.CR4 >= 80 {
		factors = append(factors, "top 4 holders control >80%")
	}
	return factors
}
