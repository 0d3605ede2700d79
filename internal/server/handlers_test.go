package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebalancr/rebalancr/internal/config"
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

type stubMarketData struct{}

func (stubMarketData) Prices(_ context.Context, symbols []string) (map[string]float64, error) {
	prices := map[string]float64{"BTC": 30000, "USDC": 1}
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if px, ok := prices[sym]; ok {
			out[sym] = px
		}
	}
	return out, nil
}

func (stubMarketData) History(context.Context, string) ([]float64, error) {
	return []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 101}, nil
}

func (stubMarketData) SocialContent(context.Context, string) (string, error) {
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
	return domain.OrderResult{Success: true, TxReference: "tx"}, nil
}

func newTestServer(t *testing.T) (*Server, int64) {
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
	id, err := repo.CreatePortfolio("user-1", "Main", map[string]float64{"BTC": 1, "USDC": 70000})
	require.NoError(t, err)

	eventManager := events.NewManager(log)
	portfolios := portfolio.NewService(repo, stubMarketData{}, log)
	rebalancer := rebalancing.NewService(
		portfolios,
		signals.NewCollector(neutralSentiment{}, neutralStatistics{}, stubMarketData{}, eventManager, 10, log),
		scoring.NewCombiner(scoring.DefaultWeights(), 0.3),
		allocation.NewPlanner(allocation.Config{
			MaxAdjustment:  0.2,
			MinAssetWeight: 0.05,
			MaxAssetWeight: 0.4,
			SafeAssets:     []string{"USDC", "USDT", "DAI"},
			SafeAssetFloor: 0.2,
		}, log),
		gate.NewGate(gate.Config{
			TradingFeeRate:   0.001,
			FixedGasEstimate: 10,
			SlippageRate:     0.001,
			MinInterval:      7 * 24 * time.Hour,
		}, log),
		review.NewReviewer(review.MarketConditionPolicy{}, review.Config{ApprovalThreshold: 0.6, MaxRisk: 7}, log),
		execution.NewCoordinator(noopExecutor{}, eventManager, time.Second, log),
		performance.NewLogger(repo, log),
		snapshots.NewRepository(portfolioDB.Conn(), log),
		eventManager,
		0.01,
		log,
	)

	srv := New(Config{
		Log:         log,
		Cfg:         &config.Config{Port: 0, DataDir: dir},
		Portfolios:  portfolios,
		Rebalancer:  rebalancer,
		Events:      eventManager,
		PortfolioDB: portfolioDB,
		LedgerDB:    ledgerDB,
	})

	return srv, id
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestListPortfolios(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/portfolios/?user_id=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Portfolios []domain.Portfolio `json:"portfolios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Portfolios, 1)
	assert.Equal(t, "Main", resp.Portfolios[0].Name)
	assert.InDelta(t, 100000.0, resp.Portfolios[0].TotalValue, 1e-9)
}

func TestListPortfolios_RequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/portfolios/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPortfolio_ByIDAndName(t *testing.T) {
	srv, id := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/portfolios/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, id, p.ID)

	// Name resolution needs user_id.
	rec = serve(srv, http.MethodGet, "/api/portfolios/main?user_id=user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/portfolios/main", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/portfolios/retirement?user_id=user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/portfolios/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettings(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodPatch, "/api/portfolios/1/settings",
		`{"frequency": "weekly", "max_slippage": 2.5, "auto_rebalance": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var p domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, int64(604800), p.CheckInterval)
	assert.Equal(t, 2.5, p.MaxSlippage)
	assert.True(t, p.AutoRebalance)
}

func TestUpdateSettings_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"unknown frequency", `{"frequency": "fortnightly"}`},
		{"zero check_interval", `{"check_interval": 0}`},
		{"slippage too low", `{"max_slippage": 0.05}`},
		{"slippage too high", `{"max_slippage": 6.0}`},
		{"malformed body", `{"max_slippage": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(srv, http.MethodPatch, "/api/portfolios/1/settings", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateSettings_ExplicitCheckInterval(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodPatch, "/api/portfolios/1/settings", `{"check_interval": 7200}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var p domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, int64(7200), p.CheckInterval)
}

func TestRebalanceEndpoint_NotNeeded(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/portfolios/1/rebalance", `{"dry_run": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.RebalanceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	// Neutral signals score to maintain across the board.
	assert.Equal(t, domain.StatusNotNeeded, result.Status)
}

func TestSimulateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/portfolios/1/simulate",
		`{"target": {"BTC": 0.5, "USDC": 0.5}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result rebalancing.SimulationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 40000.0, result.Turnover, 1e-9)
}

func TestSimulateEndpoint_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/portfolios/1/simulate", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(srv, http.MethodPost, "/api/portfolios/1/simulate",
		`{"target": {"BTC": 0.5, "USDC": 0.2}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEvents_LimitValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/portfolios/1/events?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/portfolios/1/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/portfolios/1/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// No analysis has run yet; status still answers.
	rec := serve(srv, http.MethodGet, "/api/portfolios/1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Portfolio domain.Portfolio       `json:"portfolio"`
		Analysis  *domain.AnalysisResult `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Portfolio.ID)
	assert.Nil(t, resp.Analysis)

	// After an analyze call the snapshot is served.
	rec = serve(srv, http.MethodPost, "/api/portfolios/1/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/portfolios/1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Analysis)
	assert.False(t, resp.Analysis.RebalanceNeeded)
}

func TestListBackups_DisabledReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/system/backups", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
