package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "hydra"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName             = "output"
	verboseFlagName            = "verbose"
	logFileFlagName            = "log-file"
	runParallelFlagName        = "parallel"
	strictFlagName             = "strict"
	maxViolationsFlagName      = "max-violations"
	minConfidenceFlagName      = "min-confidence"
	structuralExposureFlagName = "structural-exposure"
	madFlagName                = "mad"
	selectiveFlagName          = "selective"
	decompilerFlagName         = "decompiler"
	verdictsFlagName           = "verdicts"
	diagnosticsFlagName        = "diagnostics"
	metricsFlagName            = "metrics"

	strictModeKey         = "strict_mode"
	maxViolationsKey      = "max_violations"
	minConfidenceKey      = "min_confidence"
	structuralExposureKey = "structural_exposure"
	runParallelConfigKey  = "run.parallel"

	madEnabledKey       = "mad.enabled"
	madSelectiveKey     = "mad.selective_decompilation"
	madCommandKey       = "mad.command"
	madTimeoutKey       = "mad.timeout"
	madRatePerMinuteKey = "mad.rate_per_minute"
	madCacheSizeKey     = "mad.cache_size"
	madDailyBudgetKey   = "mad.cost_monitoring.daily_budget_usd"
	madAlertKey         = "mad.cost_monitoring.alert_threshold_usd"
	madCostPerCallKey   = "mad.cost_monitoring.cost_per_call_usd"

	oracleVerdictsKey  = "oracle.verdicts"
	metricsTextfileKey = "metrics.textfile"

	defaultReportsDir         = ".hydra-reports"
	defaultStrictMode         = false
	defaultMaxViolations      = 0
	defaultMinConfidence      = 0.7
	defaultStructuralExposure = false
	defaultRunParallel        = 4

	defaultMadEnabled       = false
	defaultMadSelective     = true
	defaultMadTimeout       = time.Minute
	defaultMadRatePerMinute = 30
	defaultMadCacheSize     = 1024
	defaultMadDailyBudget   = 10.0
	defaultMadAlert         = 8.0
	defaultMadCostPerCall   = 0.10

	defaultOracleVerdicts = "hydra-verdicts.yaml"

	envPrefix = "HYDRA"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".hydra.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(strictModeKey, defaultStrictMode)
	viper.SetDefault(maxViolationsKey, defaultMaxViolations)
	viper.SetDefault(minConfidenceKey, defaultMinConfidence)
	viper.SetDefault(structuralExposureKey, defaultStructuralExposure)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)

	viper.SetDefault(madEnabledKey, defaultMadEnabled)
	viper.SetDefault(madSelectiveKey, defaultMadSelective)
	viper.SetDefault(madCommandKey, "")
	viper.SetDefault(madTimeoutKey, int64(defaultMadTimeout.Seconds()))
	viper.SetDefault(madRatePerMinuteKey, defaultMadRatePerMinute)
	viper.SetDefault(madCacheSizeKey, defaultMadCacheSize)
	viper.SetDefault(madDailyBudgetKey, defaultMadDailyBudget)
	viper.SetDefault(madAlertKey, defaultMadAlert)
	viper.SetDefault(madCostPerCallKey, defaultMadCostPerCall)

	viper.SetDefault(oracleVerdictsKey, defaultOracleVerdicts)
	viper.SetDefault(metricsTextfileKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
