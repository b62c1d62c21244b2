package common

import "time"

// Environment variable keys
const (
	EnvConfigFile           = "ALIBI_CONFIG_FILE"
	EnvEnvFile              = "ALIBI_ENV_FILE"
	EnvResolution           = "ALIBI_RESOLUTION"
	EnvWorkers              = "ALIBI_WORKERS"
	EnvPredictorTimeout     = "ALIBI_PREDICTOR_TIMEOUT"
	EnvLowDensityWarn       = "ALIBI_LOW_DENSITY_WARN"
	EnvCentering            = "ALIBI_CENTERING"
	EnvFeatureNames         = "ALIBI_FEATURE_NAMES"
	EnvTargetNames          = "ALIBI_TARGET_NAMES"
	EnvStorePath            = "ALIBI_STORE_PATH"
	EnvStoreCompression     = "ALIBI_STORE_COMPRESSION"
	EnvLogLevel             = "ALIBI_LOG_LEVEL"
	EnvMetricsNamespace     = "ALIBI_METRICS_NAMESPACE"
	EnvPredictorURL         = "ALIBI_PREDICTOR_URL"
	EnvPredictorHTTPTimeout = "ALIBI_PREDICTOR_HTTP_TIMEOUT"
)

// Configuration defaults
const (
	DefaultResolution           = 10
	DefaultCentering            = "trapezoid"
	DefaultLogLevel             = "info"
	DefaultMetricsNamespace     = "ale"
	DefaultStoreCompression     = "zstd"
	DefaultPredictorHTTPTimeout = 30 * time.Second
)

// Validation constants
const (
	MinResolution       = 2
	MaxResolution       = 1000
	MinWorkers          = 1
	MaxWorkers          = 1024
	MaxPredictorTimeout = time.Hour
)

// Store compression modes
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)
