// Package scoring converts a per-asset SignalSet into a single bounded
// score and an action recommendation. Pure computation, no I/O.
package scoring

import (
	"math"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// Signal thresholds for the individual contributions.
const (
	belowMedianLow  = 0.4
	belowMedianHigh = 0.6
	volatilityHigh  = 0.8
	volatilityLow   = 0.3

	// manipulationDampening halves confidence when manipulation is
	// detected. It never flips the sign.
	manipulationDampening = 0.5
)

// Weights holds the per-signal contribution weights. Equal weighting is
// the starting point; weights are tuned from the performance log.
type Weights struct {
	Sentiment   float64
	BelowMedian float64
	Volatility  float64
	Trend       float64
}

// DefaultWeights returns the equal-weight starting configuration.
func DefaultWeights() Weights {
	return Weights{Sentiment: 0.25, BelowMedian: 0.25, Volatility: 0.25, Trend: 0.25}
}

// Combiner scores signal sets with configurable weights and hysteresis.
type Combiner struct {
	weights Weights

	// actionThreshold is the hysteresis band: a score must leave
	// [-threshold, +threshold] before an action other than maintain is
	// recommended, so noisy signals do not oscillate recommendations.
	actionThreshold float64
}

// NewCombiner creates a new score combiner
func NewCombiner(weights Weights, actionThreshold float64) *Combiner {
	return &Combiner{weights: weights, actionThreshold: actionThreshold}
}

// Score combines the four signal contributions into a value in [-1, 1].
// A fully degraded signal set scores zero, which maps to maintain.
func (c *Combiner) Score(signal domain.SignalSet) float64 {
	if signal.SentimentDegraded && signal.StatsDegraded {
		return 0
	}

	score := 0.0

	switch signal.Sentiment {
	case domain.SentimentGreed:
		score += c.weights.Sentiment
	case domain.SentimentFear:
		score -= c.weights.Sentiment
	}

	// Price frequently above its median reads as strength; frequently
	// below as weakness.
	if signal.BelowMedianFrequency < belowMedianLow {
		score += c.weights.BelowMedian
	} else if signal.BelowMedianFrequency > belowMedianHigh {
		score -= c.weights.BelowMedian
	}

	if signal.Volatility > volatilityHigh {
		score -= c.weights.Volatility
	} else if signal.Volatility < volatilityLow {
		score += c.weights.Volatility
	}

	if signal.Trend == domain.TrendUp {
		score += c.weights.Trend
	} else {
		score -= c.weights.Trend
	}

	if signal.ManipulationDetected {
		score *= manipulationDampening
	}

	return clamp(score, -1, 1)
}

// ActionFor maps a combined score onto an action using the hysteresis band.
func (c *Combiner) ActionFor(score float64) domain.Action {
	switch {
	case score > c.actionThreshold:
		return domain.ActionIncrease
	case score < -c.actionThreshold:
		return domain.ActionDecrease
	default:
		return domain.ActionMaintain
	}
}

// Confidence expresses score magnitude as a percentage.
func Confidence(score float64) float64 {
	return math.Abs(score) * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
