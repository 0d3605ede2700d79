// Package allocation turns per-asset scores into normalized target
// weights under the stablecoin-floor policy. Pure computation, no I/O.
package allocation

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Config holds allocation planning parameters.
type Config struct {
	// MaxAdjustment bounds the proportional weight change per run:
	// new = current * (1 ± MaxAdjustment * |score|).
	MaxAdjustment float64

	// Per-asset clamp applied after adjustment.
	MinAssetWeight float64
	MaxAssetWeight float64

	// SafeAssets and SafeAssetFloor implement the stablecoin reserve:
	// the aggregate weight of safe assets never ends below the floor.
	SafeAssets     []string
	SafeAssetFloor float64
}

// Planner computes allocation targets.
type Planner struct {
	cfg       Config
	safeAsset map[string]bool
	log       zerolog.Logger
}

// NewPlanner creates a new allocation planner
func NewPlanner(cfg Config, log zerolog.Logger) *Planner {
	safe := make(map[string]bool, len(cfg.SafeAssets))
	for _, s := range cfg.SafeAssets {
		safe[s] = true
	}
	return &Planner{
		cfg:       cfg,
		safeAsset: safe,
		log:       log.With().Str("service", "allocation").Logger(),
	}
}

// IsSafeAsset reports whether a symbol belongs to the stablecoin reserve.
func (p *Planner) IsSafeAsset(symbol string) bool {
	return p.safeAsset[symbol]
}

// Plan adjusts current weights by score, enforces the safe-asset floor,
// and normalizes. The result always sums to 1.0 within floating-point
// tolerance with no negative weights; every portfolio symbol has a target.
func (p *Planner) Plan(currentWeights map[string]float64, scores map[string]float64, actions map[string]domain.Action) domain.AllocationTarget {
	target := make(domain.AllocationTarget, len(currentWeights))

	for symbol, weight := range currentWeights {
		adjusted := weight
		switch actions[symbol] {
		case domain.ActionIncrease:
			adjusted = weight * (1 + p.cfg.MaxAdjustment*math.Abs(scores[symbol]))
			if adjusted > p.cfg.MaxAssetWeight {
				adjusted = p.cfg.MaxAssetWeight
			}
		case domain.ActionDecrease:
			adjusted = weight * (1 - p.cfg.MaxAdjustment*math.Abs(scores[symbol]))
			if adjusted < p.cfg.MinAssetWeight {
				adjusted = p.cfg.MinAssetWeight
			}
		}
		target[symbol] = adjusted
	}

	p.applySafeAssetFloor(target)
	normalize(target)

	return target
}

// applySafeAssetFloor redistributes weight so the aggregate allocation of
// safe assets present in the portfolio reaches the configured floor:
// non-safe assets shrink proportionally to their weight, safe assets grow
// evenly by the deficit.
func (p *Planner) applySafeAssetFloor(target domain.AllocationTarget) {
	var safePresent []string
	safeTotal := 0.0
	nonSafeTotal := 0.0
	for symbol, weight := range target {
		if p.safeAsset[symbol] {
			safePresent = append(safePresent, symbol)
			safeTotal += weight
		} else {
			nonSafeTotal += weight
		}
	}

	if len(safePresent) == 0 || safeTotal >= p.cfg.SafeAssetFloor || nonSafeTotal <= 0 {
		return
	}

	deficit := p.cfg.SafeAssetFloor - safeTotal
	p.log.Debug().
		Float64("safe_total", safeTotal).
		Float64("deficit", deficit).
		Msg("Safe asset allocation below floor, redistributing")

	for symbol, weight := range target {
		if !p.safeAsset[symbol] {
			target[symbol] = weight - deficit*(weight/nonSafeTotal)
		}
	}
	for _, symbol := range safePresent {
		target[symbol] += deficit / float64(len(safePresent))
	}
}

// normalize scales weights to sum to exactly 1.0. Negative residue from
// floor redistribution is floored at zero first.
func normalize(target domain.AllocationTarget) {
	total := 0.0
	for symbol, weight := range target {
		if weight < 0 {
			target[symbol] = 0
			weight = 0
		}
		total += weight
	}
	if total <= 0 {
		return
	}
	for symbol, weight := range target {
		target[symbol] = weight / total
	}
}
