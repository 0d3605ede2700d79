// Package signals collects the per-asset readings that feed scoring.
// Collection tolerates partial failure: a failed source degrades to a
// documented neutral default instead of aborting the run.
package signals

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
	"github.com/rebalancr/rebalancr/internal/events"
)

// Neutral defaults applied when a source fails for an asset.
const (
	defaultVolatility  = 0.5
	defaultBelowMedian = 0.5
)

// Collector fans signal collection out across assets with a bounded
// worker count.
type Collector struct {
	sentiment  domain.SentimentSource
	statistics domain.StatisticsSource
	marketData domain.MarketDataProvider
	events     *events.Manager
	maxWorkers int
	log        zerolog.Logger
}

// NewCollector creates a new signal collector
func NewCollector(
	sentiment domain.SentimentSource,
	statistics domain.StatisticsSource,
	marketData domain.MarketDataProvider,
	eventManager *events.Manager,
	maxWorkers int,
	log zerolog.Logger,
) *Collector {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Collector{
		sentiment:  sentiment,
		statistics: statistics,
		marketData: marketData,
		events:     eventManager,
		maxWorkers: maxWorkers,
		log:        log.With().Str("service", "signals").Logger(),
	}
}

// Collect gathers a SignalSet per symbol. Sources are queried
// independently per asset; one failing source yields a partial SignalSet
// with neutral defaults and a degraded flag, and both failing yields a
// fully degraded set that downstream scoring maps to "maintain".
func (c *Collector) Collect(ctx context.Context, portfolioID int64, symbols []string) (map[string]domain.SignalSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Deterministic order keeps progress reporting and logs stable.
	ordered := make([]string, len(symbols))
	copy(ordered, symbols)
	sort.Strings(ordered)

	workers := c.maxWorkers
	if len(ordered) < workers {
		workers = len(ordered)
	}

	results := make(map[string]domain.SignalSet, len(ordered))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, workers)
		done int
	)

	for _, symbol := range ordered {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			set := c.collectOne(ctx, portfolioID, symbol)

			mu.Lock()
			results[symbol] = set
			done++
			current := done
			mu.Unlock()

			if c.events != nil {
				c.events.Emit(events.CollectionProgress, "signals", &events.CollectionProgressData{
					PortfolioID: portfolioID,
					Symbol:      symbol,
					Current:     current,
					Total:       len(ordered),
				})
			}
		}(symbol)
	}
	wg.Wait()

	return results, nil
}

// collectOne queries both sources for a single asset and merges the
// outcome under the neutral-default policy. This is the single visible
// merge point for source failures.
func (c *Collector) collectOne(ctx context.Context, portfolioID int64, symbol string) domain.SignalSet {
	set := domain.SignalSet{
		Symbol:               symbol,
		Sentiment:            domain.SentimentNeutral,
		Volatility:           defaultVolatility,
		BelowMedianFrequency: defaultBelowMedian,
		Trend:                domain.TrendSideways,
	}

	content, err := c.marketData.SocialContent(ctx, symbol)
	if err != nil {
		// No content still allows a sentiment call on the symbol alone.
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("No social content available")
		content = ""
	}

	reading, err := c.sentiment.AnalyzeSentiment(ctx, symbol, content)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Sentiment source failed, using neutral default")
		set.SentimentDegraded = true
		c.emitDegraded(portfolioID, symbol, "sentiment", err)
	} else {
		set.Sentiment = reading.Sentiment
		set.FearScore = reading.FearScore
		set.GreedScore = reading.GreedScore
		set.ManipulationDetected = reading.ManipulationDetected()
	}

	closes, err := c.marketData.History(ctx, symbol)
	if err == nil {
		var stats domain.StatisticsReading
		stats, err = c.statistics.AnalyzeAsset(ctx, symbol, closes)
		if err == nil {
			set.Volatility = stats.Volatility
			set.BelowMedianFrequency = stats.BelowMedianFrequency
			set.Trend = stats.Trend
		}
	}
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Statistics source failed, using neutral default")
		set.StatsDegraded = true
		c.emitDegraded(portfolioID, symbol, "statistics", err)
	}

	return set
}

func (c *Collector) emitDegraded(portfolioID int64, symbol, source string, err error) {
	if c.events == nil {
		return
	}
	c.events.Emit(events.SignalDegraded, "signals", &events.SignalDegradedData{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Source:      source,
		Error:       err.Error(),
	})
}
