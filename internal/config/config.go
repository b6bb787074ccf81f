// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir      string   // Base directory for the engine database (always absolute)
	Port         int      // HTTP listen port
	LogLevel     string   // debug, info, warn, error
	DevMode      bool     // Pretty console logging
	CORSOrigins  []string // Allowed CORS origins; empty allows any origin
	Database     DatabaseConfig
	Optimization optimization.Config
	Scheduler    SchedulerConfig
}

// DatabaseConfig locates the engine database and selects its durability
// profile.
type DatabaseConfig struct {
	Path    string
	Profile database.DatabaseProfile
}

// SchedulerConfig holds the cron schedules, the parameters of the nightly
// optimization run, and the retention windows for the pruning job.
type SchedulerConfig struct {
	Enabled             bool
	OptimizationSpec    string // cron spec for the optimization run
	RetentionSpec       string // cron spec for history/result pruning
	MaintenanceSpec     string // cron spec for WAL checkpoint + vacuum
	OptimizationMethod  optimization.Method
	LookbackDays        int // price history window fed to the optimizer
	PriceRetentionDays  int
	ResultRetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ENGINE_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	profile, err := database.ParseProfile(getEnv("ENGINE_DB_PROFILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:     absDataDir,
		Port:        getEnvAsInt("ENGINE_PORT", 8001),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		CORSOrigins: utils.ParseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		Database: DatabaseConfig{
			Path:    filepath.Join(absDataDir, "engine.db"),
			Profile: profile,
		},
		Optimization: loadOptimizationConfig(),
		Scheduler:    loadSchedulerConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadOptimizationConfig layers OPT_* environment overrides onto the
// reference configuration.
func loadOptimizationConfig() optimization.Config {
	opt := optimization.DefaultConfig()
	opt.MaxIterations = getEnvAsInt("OPT_MAX_ITERATIONS", opt.MaxIterations)
	opt.Tolerance = getEnvAsFloat("OPT_TOLERANCE", opt.Tolerance)
	opt.RiskFreeRate = getEnvAsFloat("OPT_RISK_FREE_RATE", opt.RiskFreeRate)
	opt.MinPositionWeight = getEnvAsFloat("OPT_MIN_POSITION_WEIGHT", opt.MinPositionWeight)
	opt.MaxPositionWeight = getEnvAsFloat("OPT_MAX_POSITION_WEIGHT", opt.MaxPositionWeight)
	opt.SharpeImprovementTarget = getEnvAsFloat("OPT_SHARPE_IMPROVEMENT_TARGET", opt.SharpeImprovementTarget)
	opt.RiskAversion = getEnvAsFloat("OPT_RISK_AVERSION", opt.RiskAversion)
	opt.UseShrinkage = getEnvAsBool("OPT_USE_SHRINKAGE", opt.UseShrinkage)
	return opt
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:             getEnvAsBool("SCHEDULER_ENABLED", true),
		OptimizationSpec:    getEnv("SCHEDULE_OPTIMIZATION", "0 0 18 * * MON-FRI"),
		RetentionSpec:       getEnv("SCHEDULE_RETENTION", "0 30 3 * * *"),
		MaintenanceSpec:     getEnv("SCHEDULE_MAINTENANCE", "0 0 4 * * SUN"),
		OptimizationMethod:  optimization.Method(getEnv("OPT_METHOD", string(optimization.MethodMaxSharpe))),
		LookbackDays:        getEnvAsInt("OPT_LOOKBACK_DAYS", 252),
		PriceRetentionDays:  getEnvAsInt("PRICE_RETENTION_DAYS", 1825),
		ResultRetentionDays: getEnvAsInt("RESULT_RETENTION_DAYS", 365),
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if err := c.Optimization.Validate(); err != nil {
		return fmt.Errorf("invalid optimization config: %w", err)
	}
	if _, err := optimization.ParseMethod(string(c.Scheduler.OptimizationMethod)); err != nil {
		return fmt.Errorf("invalid OPT_METHOD: %w", err)
	}
	if c.Scheduler.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be positive, got %d", c.Scheduler.LookbackDays)
	}
	if c.Scheduler.PriceRetentionDays <= 0 {
		return fmt.Errorf("price retention days must be positive, got %d", c.Scheduler.PriceRetentionDays)
	}
	if c.Scheduler.ResultRetentionDays <= 0 {
		return fmt.Errorf("result retention days must be positive, got %d", c.Scheduler.ResultRetentionDays)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
