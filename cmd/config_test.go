package cmd

import (
	"log/slog"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "hydra", configBaseName)
	assert.Equal(t, "hydra.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputFlagName)
	assert.Equal(t, "parallel", runParallelFlagName)
	assert.Equal(t, "run.parallel", runParallelConfigKey)
	assert.Equal(t, ".hydra-reports", defaultReportsDir)
	assert.Equal(t, 4, defaultRunParallel)
	assert.Equal(t, "HYDRA", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		key  string
		want interface{}
	}{
		{strictModeKey, false},
		{maxViolationsKey, 0},
		{minConfidenceKey, 0.7},
		{structuralExposureKey, false},
		{madEnabledKey, false},
		{madSelectiveKey, true},
		{madTimeoutKey, int64(60)},
		{madRatePerMinuteKey, 30},
		{madCacheSizeKey, 1024},
		{madDailyBudgetKey, 10.0},
		{madAlertKey, 8.0},
		{madCostPerCallKey, 0.10},
		{oracleVerdictsKey, "hydra-verdicts.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.EqualValues(t, tt.want, viper.Get(tt.key))
		})
	}
}

func TestConfig_EnvOverridesDefault(t *testing.T) {
	t.Setenv("HYDRA_MAD_COST_MONITORING_DAILY_BUDGET_USD", "2.5")
	t.Setenv("HYDRA_STRICT_MODE", "true")

	assert.InDelta(t, 2.5, viper.GetFloat64(madDailyBudgetKey), 1e-9)
	assert.True(t, viper.GetBool(strictModeKey))
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"chatty", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}
