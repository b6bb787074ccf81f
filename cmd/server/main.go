// Package main is the entry point for the portfolio optimization engine. It
// wires the engine database, the event bus, the optimization, risk,
// evaluation and universe services, the background scheduler, and the HTTP
// server, then runs until interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/config"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/evaluation"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/risk"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/scheduler"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/server"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting portfolio engine")

	// Engine database
	db, err := database.New(database.Config{
		Path:    cfg.Database.Path,
		Profile: cfg.Database.Profile,
		Name:    "engine",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open engine database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate engine database")
	}

	// Event bus and core services
	bus := events.NewBus(log)

	history := universe.NewHistoryDB(db.Conn(), log)
	validator := universe.NewPriceValidator(log)
	covarianceCache := optimization.NewCovarianceCache(optimization.DefaultCovarianceTTL, log)
	optimizer := optimization.NewService(cfg.Optimization, covarianceCache, log)
	results := optimization.NewResultRepository(db.Conn(), log)
	riskCalc := risk.NewCalculator(cfg.Optimization.RiskFreeRate, log)
	evaluator := evaluation.NewEvaluator(cfg.Optimization.SharpeImprovementTarget, log)

	// Background scheduler
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(bus, log)

		optimizationJob := scheduler.NewOptimizationJob(
			scheduler.OptimizationJobConfig{
				Method:       cfg.Scheduler.OptimizationMethod,
				LookbackDays: cfg.Scheduler.LookbackDays,
			},
			history,
			universe.NewScreener(universe.DefaultCriteria(), log),
			optimizer,
			results,
			evaluator,
			bus,
			log,
		)
		if err := sched.AddJob(cfg.Scheduler.OptimizationSpec, optimizationJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register optimization job")
		}

		retentionJob := scheduler.NewRetentionJob(
			history,
			results,
			bus,
			cfg.Scheduler.PriceRetentionDays,
			cfg.Scheduler.ResultRetentionDays,
			log,
		)
		if err := sched.AddJob(cfg.Scheduler.RetentionSpec, retentionJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register retention job")
		}

		maintenanceJob := scheduler.NewMaintenanceJob(db, log)
		if err := sched.AddJob(cfg.Scheduler.MaintenanceSpec, maintenanceJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register maintenance job")
		}

		sched.Start()
	}

	// HTTP server
	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		CORSOrigins: cfg.CORSOrigins,
		DB:          db,
		Bus:         bus,
		History:     history,
		Validator:   validator,
		Optimizer:   optimizer,
		Results:     results,
		Risk:        riskCalc,
		Evaluator:   evaluator,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	if sched != nil {
		sched.Stop()
	}

	// In-flight requests get up to 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
