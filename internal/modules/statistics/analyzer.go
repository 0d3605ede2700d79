// Package statistics computes the numerical signals used by scoring:
// volatility, below-median frequency, and trend. All metrics are plain
// statistics over recent closing prices; nothing here calls an AI.
package statistics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/rebalancr/rebalancr/internal/domain"
)

const (
	// minSamples is the fewest closes that still give meaningful metrics.
	minSamples = 10

	// Trend classification uses a fast/slow SMA crossover. A spread under
	// trendBand (relative to the slow average) counts as sideways.
	fastPeriod = 7
	slowPeriod = 30
	trendBand  = 0.01

	// Annualized volatility at or above volCeiling maps to 1.0.
	volCeiling = 2.0
)

// Analyzer implements domain.StatisticsSource over closing price series.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a new statistics analyzer
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("service", "statistics").Logger()}
}

// AnalyzeAsset computes the statistics reading for one asset from its
// recent closes (oldest first).
func (a *Analyzer) AnalyzeAsset(ctx context.Context, symbol string, closes []float64) (domain.StatisticsReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatisticsReading{}, err
	}
	if len(closes) < minSamples {
		return domain.StatisticsReading{}, fmt.Errorf("insufficient price history for %s: %d samples", symbol, len(closes))
	}

	reading := domain.StatisticsReading{
		Volatility:           Volatility(closes),
		BelowMedianFrequency: BelowMedianFrequency(closes),
		Trend:                ClassifyTrend(closes),
	}

	a.log.Debug().
		Str("symbol", symbol).
		Float64("volatility", reading.Volatility).
		Float64("below_median_frequency", reading.BelowMedianFrequency).
		Str("trend", string(reading.Trend)).
		Msg("Asset analyzed")

	return reading, nil
}

// Volatility returns annualized return volatility normalized to [0,1].
// Crypto trades continuously, so annualization uses 365 days.
func Volatility(closes []float64) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0.5
	}

	annualized := stat.StdDev(returns, nil) * math.Sqrt(365)
	normalized := annualized / volCeiling
	if normalized > 1 {
		return 1
	}
	return normalized
}

// BelowMedianFrequency returns the fraction of samples below the series
// median, the mean-reversion signal.
func BelowMedianFrequency(closes []float64) float64 {
	sorted := make([]float64, len(closes))
	copy(sorted, closes)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	below := 0
	for _, c := range closes {
		if c < median {
			below++
		}
	}
	return float64(below) / float64(len(closes))
}

// ClassifyTrend labels the series by comparing fast and slow moving
// averages of the most recent window.
func ClassifyTrend(closes []float64) domain.Trend {
	slow := slowPeriod
	if len(closes) < slow {
		slow = len(closes)
	}
	fast := fastPeriod
	if fast >= slow {
		fast = slow / 2
		if fast < 2 {
			fast = 2
		}
	}

	fastSMA := lastValid(talib.Sma(closes, fast))
	slowSMA := lastValid(talib.Sma(closes, slow))
	if slowSMA <= 0 {
		return domain.TrendSideways
	}

	spread := (fastSMA - slowSMA) / slowSMA
	switch {
	case spread > trendBand:
		return domain.TrendUp
	case spread < -trendBand:
		return domain.TrendDown
	default:
		return domain.TrendSideways
	}
}

// lastValid returns the last non-NaN value of a talib output series.
func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && series[i] != 0 {
			return series[i]
		}
	}
	return 0
}
