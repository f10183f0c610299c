package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/ledger")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 0.20, cfg.DepreciationDefaultRate)
	require.Equal(t, 10*time.Minute, cfg.LockTTL)
	require.Equal(t, "0 2 1 * *", cfg.DepreciationCron)
	require.Equal(t, "15 2 1 * *", cfg.AmortizationCron)
	require.Equal(t, "USD", cfg.Currency)
	require.Equal(t, 12, cfg.DepreciationPeriodsPerYear)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadRate(t *testing.T) {
	t.Setenv("DEPRECIATION_DEFAULT_RATE", "1.5")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "DEPRECIATION_DEFAULT_RATE")

	t.Setenv("DEPRECIATION_DEFAULT_RATE", "0.2")
	t.Setenv("VAT_RATE", "-0.1")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "VAT_RATE")

	t.Setenv("VAT_RATE", "0")
	t.Setenv("DEPRECIATION_PERIODS_PER_YEAR", "5")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "DEPRECIATION_PERIODS_PER_YEAR")
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("WORKER_CONCURRENCY", "3")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 90*time.Second, cfg.LockTTL)
	require.Equal(t, 3, cfg.WorkerConcurrency)

	t.Setenv("WORKER_CONCURRENCY", "many")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
