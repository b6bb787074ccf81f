package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ENGINE_DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Nil(t, cfg.CORSOrigins)
	assert.Equal(t, filepath.Join(dataDir, "engine.db"), cfg.Database.Path)
	assert.Equal(t, database.ProfileStandard, cfg.Database.Profile)

	assert.Equal(t, optimization.DefaultConfig(), cfg.Optimization)

	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, optimization.MethodMaxSharpe, cfg.Scheduler.OptimizationMethod)
	assert.Equal(t, 252, cfg.Scheduler.LookbackDays)
	assert.Equal(t, 1825, cfg.Scheduler.PriceRetentionDays)
	assert.Equal(t, 365, cfg.Scheduler.ResultRetentionDays)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENGINE_DATA_DIR", t.TempDir())
	t.Setenv("ENGINE_PORT", "9200")
	t.Setenv("ENGINE_DB_PROFILE", "durable")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://dash.example.com")
	t.Setenv("OPT_MAX_ITERATIONS", "500")
	t.Setenv("OPT_RISK_FREE_RATE", "0.015")
	t.Setenv("OPT_USE_SHRINKAGE", "true")
	t.Setenv("OPT_METHOD", "hrp")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, database.ProfileDurable, cfg.Database.Profile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 500, cfg.Optimization.MaxIterations)
	assert.Equal(t, 0.015, cfg.Optimization.RiskFreeRate)
	assert.True(t, cfg.Optimization.UseShrinkage)
	assert.Equal(t, optimization.MethodHRP, cfg.Scheduler.OptimizationMethod)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_UnparsableOverrideFallsBack(t *testing.T) {
	t.Setenv("ENGINE_DATA_DIR", t.TempDir())
	t.Setenv("ENGINE_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
}

func TestLoad_InvalidProfile(t *testing.T) {
	t.Setenv("ENGINE_DATA_DIR", t.TempDir())
	t.Setenv("ENGINE_DB_PROFILE", "turbo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database profile")
}

func TestLoad_InvalidMethod(t *testing.T) {
	t.Setenv("ENGINE_DATA_DIR", t.TempDir())
	t.Setenv("OPT_METHOD", "alchemy")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPT_METHOD")
}

func TestValidate_RejectsBadRetention(t *testing.T) {
	t.Setenv("ENGINE_DATA_DIR", t.TempDir())
	t.Setenv("RESULT_RETENTION_DAYS", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result retention")
}
