package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rebalancr/rebalancr/internal/domain"
)

func TestScore_Contributions(t *testing.T) {
	c := NewCombiner(DefaultWeights(), 0.3)

	tests := []struct {
		name     string
		signal   domain.SignalSet
		expected float64
	}{
		{
			name: "all bullish",
			signal: domain.SignalSet{
				Sentiment:            domain.SentimentGreed,
				BelowMedianFrequency: 0.2,
				Volatility:           0.1,
				Trend:                domain.TrendUp,
			},
			expected: 1.0,
		},
		{
			name: "all bearish",
			signal: domain.SignalSet{
				Sentiment:            domain.SentimentFear,
				BelowMedianFrequency: 0.8,
				Volatility:           0.9,
				Trend:                domain.TrendDown,
			},
			expected: -1.0,
		},
		{
			name: "neutral mid-range signals still penalize non-uptrend",
			signal: domain.SignalSet{
				Sentiment:            domain.SentimentNeutral,
				BelowMedianFrequency: 0.5,
				Volatility:           0.5,
				Trend:                domain.TrendSideways,
			},
			expected: -0.25,
		},
		{
			name: "mixed signals cancel",
			signal: domain.SignalSet{
				Sentiment:            domain.SentimentGreed,
				BelowMedianFrequency: 0.5,
				Volatility:           0.5,
				Trend:                domain.TrendDown,
			},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, c.Score(tt.signal), 1e-9)
		})
	}
}

func TestScore_ManipulationDampening(t *testing.T) {
	c := NewCombiner(DefaultWeights(), 0.3)

	clean := domain.SignalSet{
		Sentiment:            domain.SentimentGreed,
		BelowMedianFrequency: 0.2,
		Volatility:           0.1,
		Trend:                domain.TrendUp,
	}
	manipulated := clean
	manipulated.ManipulationDetected = true

	cleanScore := c.Score(clean)
	dampened := c.Score(manipulated)

	assert.InDelta(t, cleanScore*0.5, dampened, 1e-9)
	// Dampening reduces magnitude, never flips the sign.
	assert.Greater(t, dampened, 0.0)

	bearish := domain.SignalSet{
		Sentiment:            domain.SentimentFear,
		BelowMedianFrequency: 0.8,
		Volatility:           0.9,
		Trend:                domain.TrendDown,
		ManipulationDetected: true,
	}
	assert.Less(t, c.Score(bearish), 0.0)
}

func TestScore_FullyDegradedIsZero(t *testing.T) {
	c := NewCombiner(DefaultWeights(), 0.3)

	signal := domain.SignalSet{
		Sentiment:            domain.SentimentGreed,
		BelowMedianFrequency: 0.2,
		Volatility:           0.1,
		Trend:                domain.TrendUp,
		SentimentDegraded:    true,
		StatsDegraded:        true,
	}

	assert.Equal(t, 0.0, c.Score(signal))
	assert.Equal(t, domain.ActionMaintain, c.ActionFor(0.0))
}

func TestScore_Bounds(t *testing.T) {
	// Oversized weights must still clamp to [-1, 1].
	c := NewCombiner(Weights{Sentiment: 1, BelowMedian: 1, Volatility: 1, Trend: 1}, 0.3)

	signal := domain.SignalSet{
		Sentiment:            domain.SentimentGreed,
		BelowMedianFrequency: 0.1,
		Volatility:           0.1,
		Trend:                domain.TrendUp,
	}
	assert.Equal(t, 1.0, c.Score(signal))

	signal.Sentiment = domain.SentimentFear
	signal.BelowMedianFrequency = 0.9
	signal.Volatility = 0.9
	signal.Trend = domain.TrendDown
	assert.Equal(t, -1.0, c.Score(signal))
}

func TestActionFor_HysteresisBand(t *testing.T) {
	c := NewCombiner(DefaultWeights(), 0.3)

	assert.Equal(t, domain.ActionIncrease, c.ActionFor(0.31))
	assert.Equal(t, domain.ActionDecrease, c.ActionFor(-0.31))
	assert.Equal(t, domain.ActionMaintain, c.ActionFor(0.3))
	assert.Equal(t, domain.ActionMaintain, c.ActionFor(-0.3))
	assert.Equal(t, domain.ActionMaintain, c.ActionFor(0.0))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 50.0, Confidence(0.5))
	assert.Equal(t, 50.0, Confidence(-0.5))
	assert.Equal(t, 100.0, Confidence(1.0))
}
