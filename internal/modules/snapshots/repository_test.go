package snapshots

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebalancr/rebalancr/internal/database"
	"github.com/rebalancr/rebalancr/internal/domain"
	"github.com/rebalancr/rebalancr/pkg/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.Conn(), logger.New(logger.Config{Level: "error"}))
}

func testResult(portfolioID int64, message string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		RunID:           "run-1",
		PortfolioID:     portfolioID,
		RebalanceNeeded: true,
		Assets: []domain.AssetInsight{
			{
				Asset:             "BTC",
				CurrentAllocation: 0.6,
				RecommendedAction: domain.ActionDecrease,
				Confidence:        45,
				Score:             -0.45,
				Sentiment:         domain.SentimentGreed,
				Trend:             domain.TrendUp,
			},
		},
		TargetWeights:   domain.AllocationTarget{"BTC": 0.4, "USDC": 0.6},
		MarketCondition: "normal",
		Message:         message,
		GeneratedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndLatest(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(testResult(1, "Rebalance recommended")))

	got, err := repo.Latest(1)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, int64(1), got.PortfolioID)
	assert.True(t, got.RebalanceNeeded)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, domain.ActionDecrease, got.Assets[0].RecommendedAction)
	assert.Equal(t, domain.AllocationTarget{"BTC": 0.4, "USDC": 0.6}, got.TargetWeights)
	assert.Equal(t, "Rebalance recommended", got.Message)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(testResult(1, "first")))
	require.NoError(t, repo.Save(testResult(1, "second")))

	got, err := repo.Latest(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Message)
}

func TestLatest_NoneStored(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.Latest(7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotsAreIsolatedPerPortfolio(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(testResult(1, "portfolio one")))
	require.NoError(t, repo.Save(testResult(2, "portfolio two")))

	one, err := repo.Latest(1)
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "portfolio one", one.Message)

	two, err := repo.Latest(2)
	require.NoError(t, err)
	require.NotNil(t, two)
	assert.Equal(t, "portfolio two", two.Message)
}
