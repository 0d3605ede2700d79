package work

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebalancr/rebalancr/internal/database"
	"github.com/rebalancr/rebalancr/internal/domain"
	"github.com/rebalancr/rebalancr/internal/events"
	"github.com/rebalancr/rebalancr/internal/modules/allocation"
	"github.com/rebalancr/rebalancr/internal/modules/execution"
	"github.com/rebalancr/rebalancr/internal/modules/gate"
	"github.com/rebalancr/rebalancr/internal/modules/performance"
	"github.com/rebalancr/rebalancr/internal/modules/portfolio"
	"github.com/rebalancr/rebalancr/internal/modules/rebalancing"
	"github.com/rebalancr/rebalancr/internal/modules/review"
	"github.com/rebalancr/rebalancr/internal/modules/scoring"
	"github.com/rebalancr/rebalancr/internal/modules/signals"
	"github.com/rebalancr/rebalancr/internal/modules/snapshots"
	"github.com/rebalancr/rebalancr/pkg/logger"
)

type quietMarketData struct{}

func (quietMarketData) Prices(_ context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		out[sym] = 1
	}
	return out, nil
}

func (quietMarketData) History(context.Context, string) ([]float64, error) {
	return []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}, nil
}

func (quietMarketData) SocialContent(context.Context, string) (string, error) {
	return "", nil
}

type neutralSentiment struct{}

func (neutralSentiment) AnalyzeSentiment(context.Context, string, string) (domain.SentimentReading, error) {
	return domain.SentimentReading{Sentiment: domain.SentimentNeutral}, nil
}

type neutralStatistics struct{}

func (neutralStatistics) AnalyzeAsset(context.Context, string, []float64) (domain.StatisticsReading, error) {
	return domain.StatisticsReading{Volatility: 0.5, BelowMedianFrequency: 0.5, Trend: domain.TrendSideways}, nil
}

type noopExecutor struct{}

func (noopExecutor) SubmitOrder(context.Context, string, float64, float64) (domain.OrderResult, error) {
	return domain.OrderResult{Success: true}, nil
}

// newTestMonitor wires a monitor over temp databases and neutral stub
// sources, returning the monitor, the repository, and the event bus.
func newTestMonitor(t *testing.T, minInterval time.Duration) (*Monitor, *portfolio.Repository, *events.Manager) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	dir := t.TempDir()

	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, portfolioDB.Migrate())
	t.Cleanup(func() { portfolioDB.Close() })

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	require.NoError(t, ledgerDB.Migrate())
	t.Cleanup(func() { ledgerDB.Close() })

	repo := portfolio.NewRepository(portfolioDB.Conn(), ledgerDB.Conn(), log)
	marketData := quietMarketData{}
	eventManager := events.NewManager(log)
	portfolios := portfolio.NewService(repo, marketData, log)
	collector := signals.NewCollector(neutralSentiment{}, neutralStatistics{}, marketData, eventManager, 4, log)
	combiner := scoring.NewCombiner(scoring.DefaultWeights(), 0.3)
	planner := allocation.NewPlanner(allocation.Config{
		MaxAdjustment:  0.2,
		MinAssetWeight: 0.05,
		MaxAssetWeight: 0.4,
		SafeAssets:     []string{"USDC"},
		SafeAssetFloor: 0.2,
	}, log)
	g := gate.NewGate(gate.Config{
		TradingFeeRate:   0.001,
		FixedGasEstimate: 10,
		SlippageRate:     0.001,
		MinInterval:      minInterval,
	}, log)
	reviewer := review.NewReviewer(review.MarketConditionPolicy{}, review.Config{
		ApprovalThreshold: 0.6,
		MaxRisk:           7,
	}, log)
	coordinator := execution.NewCoordinator(noopExecutor{}, eventManager, time.Second, log)
	perfLog := performance.NewLogger(repo, log)
	snapshotRepo := snapshots.NewRepository(portfolioDB.Conn(), log)

	rebalancer := rebalancing.NewService(portfolios, collector, combiner, planner, g,
		reviewer, coordinator, perfLog, snapshotRepo, eventManager, 0.01, log)

	m := NewMonitor(portfolios, rebalancer, perfLog, eventManager, minInterval, time.Minute, log)
	return m, repo, eventManager
}

func TestMonitorDue(t *testing.T) {
	m := NewMonitor(nil, nil, nil, nil, 7*24*time.Hour, time.Minute, logger.New(logger.Config{Level: "error"}))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("never rebalanced is always due", func(t *testing.T) {
		p := &domain.Portfolio{CheckInterval: 86400}
		assert.True(t, m.due(p, now))
	})

	t.Run("global minimum governs a short check interval", func(t *testing.T) {
		// check_interval one day, global minimum seven: 48h elapsed is
		// not due, exactly what the gate would skip as too frequent.
		last := now.Add(-48 * time.Hour)
		p := &domain.Portfolio{CheckInterval: 86400, LastRebalance: &last}
		assert.False(t, m.due(p, now))
	})

	t.Run("due once the global minimum elapses", func(t *testing.T) {
		last := now.Add(-8 * 24 * time.Hour)
		p := &domain.Portfolio{CheckInterval: 86400, LastRebalance: &last}
		assert.True(t, m.due(p, now))
	})

	t.Run("long check interval governs over the minimum", func(t *testing.T) {
		last := now.Add(-10 * 24 * time.Hour)
		p := &domain.Portfolio{CheckInterval: 30 * 86400, LastRebalance: &last}
		assert.False(t, m.due(p, now))
	})

	t.Run("long check interval elapsed", func(t *testing.T) {
		last := now.Add(-31 * 24 * time.Hour)
		p := &domain.Portfolio{CheckInterval: 30 * 86400, LastRebalance: &last}
		assert.True(t, m.due(p, now))
	})
}

func TestMonitorDueMatchesGatePolicy(t *testing.T) {
	// A portfolio the monitor considers due must never be one the gate
	// still skips as too frequent.
	minInterval := 7 * 24 * time.Hour
	log := logger.New(logger.Config{Level: "error"})
	m := NewMonitor(nil, nil, nil, nil, minInterval, time.Minute, log)
	g := gate.NewGate(gate.Config{MinInterval: minInterval}, log)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, hoursAgo := range []int{1, 24, 48, 167, 168, 200} {
		last := now.Add(-time.Duration(hoursAgo) * time.Hour)
		p := &domain.Portfolio{CheckInterval: 86400, LastRebalance: &last, TotalValue: 100000}

		if m.due(p, now) {
			decision := g.Evaluate(p, domain.TradePlan{}, nil, 0, now)
			assert.NotEqual(t, domain.SkipTooFrequent, decision.Reason,
				"due portfolio gate-skipped at %dh elapsed", hoursAgo)
		}
	}
}

func TestMonitorRun(t *testing.T) {
	m, repo, eventManager := newTestMonitor(t, 7*24*time.Hour)

	// First portfolio has no holdings so its rebalance fails; the scan
	// must still reach the second one.
	brokenID, err := repo.CreatePortfolio("user-1", "Empty", nil)
	require.NoError(t, err)
	healthyID, err := repo.CreatePortfolio("user-1", "Main", map[string]float64{"BTC": 1, "USDC": 100})
	require.NoError(t, err)

	enabled := true
	require.NoError(t, repo.UpdatePortfolio(brokenID, domain.PortfolioUpdate{AutoRebalance: &enabled}))
	require.NoError(t, repo.UpdatePortfolio(healthyID, domain.PortfolioUpdate{AutoRebalance: &enabled}))

	var (
		mu     sync.Mutex
		errors []events.Event
	)
	unsubscribe := eventManager.Subscribe(func(e events.Event) {
		if e.Type == events.ErrorOccurred {
			mu.Lock()
			errors = append(errors, e)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	require.NoError(t, m.Run())

	mu.Lock()
	require.Len(t, errors, 1)
	data, ok := errors[0].Data.(*events.ErrorEventData)
	mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, brokenID, data.Context["portfolio_id"])

	// The healthy portfolio's check lands in the ledger even when no
	// action was needed.
	checked, err := repo.GetEvents(healthyID, string(domain.EventAutoRebalance), 10)
	require.NoError(t, err)
	require.Len(t, checked, 1)
	assert.Equal(t, string(domain.StatusNotNeeded), checked[0].Details.Reason)
	assert.NotEmpty(t, checked[0].Details.RunID)

	// The failed portfolio gets no checked entry.
	broken, err := repo.GetEvents(brokenID, string(domain.EventAutoRebalance), 10)
	require.NoError(t, err)
	assert.Empty(t, broken)
}

func TestMonitorRun_NotDueRefreshesAnalysis(t *testing.T) {
	m, repo, _ := newTestMonitor(t, 7*24*time.Hour)

	id, err := repo.CreatePortfolio("user-1", "Main", map[string]float64{"BTC": 1, "USDC": 100})
	require.NoError(t, err)
	enabled := true
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	require.NoError(t, repo.UpdatePortfolio(id, domain.PortfolioUpdate{
		AutoRebalance: &enabled,
		LastRebalance: &recent,
	}))

	require.NoError(t, m.Run())

	// No rebalance attempt: the ledger stays clear of auto_rebalance
	// and rebalance_skipped entries.
	checked, err := repo.GetEvents(id, string(domain.EventAutoRebalance), 10)
	require.NoError(t, err)
	assert.Empty(t, checked)
	skipped, err := repo.GetEvents(id, string(domain.EventRebalanceSkipped), 10)
	require.NoError(t, err)
	assert.Empty(t, skipped)
}

func TestNewMonitorDefaultsTimeout(t *testing.T) {
	m := NewMonitor(nil, nil, nil, nil, 7*24*time.Hour, 0, logger.New(logger.Config{Level: "error"}))
	assert.Equal(t, 4*time.Minute, m.timeout)
	assert.Equal(t, "auto_rebalance_monitor", m.Name())
}
