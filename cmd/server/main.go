// Package main is the entry point for the rebalancr decision engine. The
// service analyzes crypto portfolios, decides whether rebalancing is worth
// its costs, and executes approved trade plans through the venue service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rebalancr/rebalancr/internal/config"
	"github.com/rebalancr/rebalancr/internal/di"
	"github.com/rebalancr/rebalancr/internal/scheduler"
	"github.com/rebalancr/rebalancr/internal/server"
	"github.com/rebalancr/rebalancr/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting rebalancr")

	container, err := di.Wire(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Background jobs: the auto-rebalance monitor always runs; the ledger
	// backup only when configured.
	sched := scheduler.New(container.EventManager, log)
	if err := sched.AddJob(cfg.MonitorSchedule, container.Monitor); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule auto-rebalance monitor")
	}
	if container.BackupJob != nil {
		if err := sched.AddJob(cfg.Backup.Schedule, container.BackupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule ledger backup")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Catch up portfolios that came due while the service was down
	// instead of waiting for the first scheduled cycle.
	go func() {
		if err := sched.RunNow(container.Monitor); err != nil {
			log.Error().Err(err).Msg("Initial auto-rebalance scan failed")
		}
	}()

	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		Portfolios:  container.PortfolioService,
		Rebalancer:  container.Rebalancer,
		Backups:     container.BackupService,
		Events:      container.EventManager,
		PortfolioDB: container.PortfolioDB,
		LedgerDB:    container.LedgerDB,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
