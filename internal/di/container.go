// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/clients/allora"
	"github.com/rebalancr/rebalancr/internal/clients/kuru"
	"github.com/rebalancr/rebalancr/internal/config"
	"github.com/rebalancr/rebalancr/internal/database"
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
	"github.com/rebalancr/rebalancr/internal/modules/statistics"
	"github.com/rebalancr/rebalancr/internal/reliability"
	"github.com/rebalancr/rebalancr/internal/work"
)

// Container holds all application dependencies. Created once by Wire and
// passed to the server and scheduler.
type Container struct {
	// Databases (two-database architecture: mutable state + audit ledger)
	PortfolioDB *database.DB
	LedgerDB    *database.DB

	// Clients
	AlloraClient *allora.Client
	KuruClient   *kuru.Client

	// Event bus
	EventManager *events.Manager

	// Services
	PortfolioService *portfolio.Service
	Rebalancer       *rebalancing.Service
	BackupService    *reliability.BackupService // nil when backups are disabled

	// Jobs
	Monitor   *work.Monitor
	BackupJob *work.BackupJob // nil when backups are disabled
}

// Wire initializes all dependencies and returns a fully configured
// container. Order: databases, clients, event bus, pipeline modules,
// services, jobs.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{}

	if err := initDatabases(c, cfg, log); err != nil {
		return nil, err
	}

	c.AlloraClient = allora.NewClient(cfg.AlloraBaseURL, cfg.AlloraAPIKey, log)
	c.KuruClient = kuru.NewClient(cfg.KuruBaseURL, cfg.ChainID, log)
	c.EventManager = events.NewManager(log)

	marketData := &marketDataProvider{prices: c.KuruClient, social: c.AlloraClient}

	portfolioRepo := portfolio.NewRepository(c.PortfolioDB.Conn(), c.LedgerDB.Conn(), log)
	c.PortfolioService = portfolio.NewService(portfolioRepo, marketData, log)

	engine := cfg.Engine
	collector := signals.NewCollector(
		c.AlloraClient,
		statistics.NewAnalyzer(log),
		marketData,
		c.EventManager,
		engine.MaxCollectWorkers,
		log,
	)
	combiner := scoring.NewCombiner(scoring.Weights{
		Sentiment:   engine.SentimentWeight,
		BelowMedian: engine.BelowMedianWeight,
		Volatility:  engine.VolatilityWeight,
		Trend:       engine.TrendWeight,
	}, engine.ActionThreshold)
	planner := allocation.NewPlanner(allocation.Config{
		MaxAdjustment:  engine.MaxAdjustment,
		MinAssetWeight: engine.MinAssetWeight,
		MaxAssetWeight: engine.MaxAssetWeight,
		SafeAssets:     engine.SafeAssets,
		SafeAssetFloor: engine.SafeAssetFloor,
	}, log)
	costGate := gate.NewGate(gate.Config{
		TradingFeeRate:   engine.TradingFeeRate,
		FixedGasEstimate: engine.FixedGasEstimate,
		SlippageRate:     engine.SlippageRate,
		MinInterval:      engine.MinRebalanceInterval(),
	}, log)
	reviewer := review.NewReviewer(review.MarketConditionPolicy{}, review.Config{
		ApprovalThreshold: engine.ApprovalThreshold,
		MaxRisk:           engine.MaxRisk,
	}, log)
	coordinator := execution.NewCoordinator(c.KuruClient, c.EventManager, engine.OrderTimeout, log)
	perfLog := performance.NewLogger(portfolioRepo, log)
	snapshotRepo := snapshots.NewRepository(c.PortfolioDB.Conn(), log)

	c.Rebalancer = rebalancing.NewService(
		c.PortfolioService,
		collector,
		combiner,
		planner,
		costGate,
		reviewer,
		coordinator,
		perfLog,
		snapshotRepo,
		c.EventManager,
		engine.MinTradeFraction,
		log,
	)

	c.Monitor = work.NewMonitor(c.PortfolioService, c.Rebalancer, perfLog, c.EventManager,
		engine.MinRebalanceInterval(), 4*time.Minute, log)

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		c.BackupService = reliability.NewBackupService(c.LedgerDB, s3Client, cfg.Backup.Retention, log)
		c.BackupJob = work.NewBackupJob(c.BackupService, log)
	}

	log.Info().Msg("Dependency injection wiring completed")

	return c, nil
}

// Close releases the container's database connections.
func (c *Container) Close() {
	if c.PortfolioDB != nil {
		c.PortfolioDB.Close()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
}

func initDatabases(c *Container, cfg *config.Config, log zerolog.Logger) error {
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		return fmt.Errorf("failed to open portfolio database: %w", err)
	}
	if err := portfolioDB.Migrate(); err != nil {
		portfolioDB.Close()
		return fmt.Errorf("failed to migrate portfolio database: %w", err)
	}

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		portfolioDB.Close()
		return fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := ledgerDB.Migrate(); err != nil {
		portfolioDB.Close()
		ledgerDB.Close()
		return fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	c.PortfolioDB = portfolioDB
	c.LedgerDB = ledgerDB
	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")

	return nil
}
