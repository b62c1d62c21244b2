package cfg

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/tanaysd/alibi/ale"
	"github.com/tanaysd/alibi/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Resolution           int
	Workers              int
	PredictorTimeout     time.Duration
	LowDensityWarn       bool
	Centering            string
	FeatureNames         []string
	TargetNames          []string
	StorePath            string
	StoreCompression     string
	LogLevel             string
	MetricsNamespace     string
	PredictorURL         string
	PredictorHTTPTimeout time.Duration
}

type ConfigFile struct {
	Explainer struct {
		Resolution       int      `yaml:"resolution"`
		Workers          int      `yaml:"workers"`
		PredictorTimeout string   `yaml:"predictorTimeout"`
		LowDensityWarn   bool     `yaml:"lowDensityWarn"`
		Centering        string   `yaml:"centering"`
		FeatureNames     []string `yaml:"featureNames"`
		TargetNames      []string `yaml:"targetNames"`
	} `yaml:"explainer"`

	Store struct {
		Path        string `yaml:"path"`
		Compression string `yaml:"compression"`
	} `yaml:"store"`

	Predictor struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"predictor"`

	System struct {
		LogLevel         string `yaml:"logLevel"`
		MetricsNamespace string `yaml:"metricsNamespace"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Variables from the dotenv file never replace ones already set
	if envPath := os.Getenv(common.EnvEnvFile); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return Settings{}, fmt.Errorf("failed to load env file %s: %w", envPath, err)
		}
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Parse durations
	predictorTimeout, err := time.ParseDuration(config.Explainer.PredictorTimeout)
	if err != nil {
		predictorTimeout = 0
	}

	httpTimeout, err := time.ParseDuration(config.Predictor.Timeout)
	if err != nil {
		httpTimeout = common.DefaultPredictorHTTPTimeout
	}

	settings := Settings{
		Resolution:           getIntFromEnvOrConfig(common.EnvResolution, config.Explainer.Resolution, common.DefaultResolution),
		Workers:              getIntFromEnvOrConfig(common.EnvWorkers, config.Explainer.Workers, runtime.GOMAXPROCS(0)),
		PredictorTimeout:     getDurationOrDefault(common.EnvPredictorTimeout, predictorTimeout),
		LowDensityWarn:       getBoolFromEnvOrConfig(common.EnvLowDensityWarn, config.Explainer.LowDensityWarn),
		Centering:            getEnvOrDefault(common.EnvCentering, orDefault(config.Explainer.Centering, common.DefaultCentering)),
		FeatureNames:         getListFromEnvOrConfig(common.EnvFeatureNames, config.Explainer.FeatureNames),
		TargetNames:          getListFromEnvOrConfig(common.EnvTargetNames, config.Explainer.TargetNames),
		StorePath:            getEnvOrDefault(common.EnvStorePath, config.Store.Path),
		StoreCompression:     getEnvOrDefault(common.EnvStoreCompression, orDefault(config.Store.Compression, common.DefaultStoreCompression)),
		LogLevel:             getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		MetricsNamespace:     getEnvOrDefault(common.EnvMetricsNamespace, orDefault(config.System.MetricsNamespace, common.DefaultMetricsNamespace)),
		PredictorURL:         getEnvOrDefault(common.EnvPredictorURL, config.Predictor.URL),
		PredictorHTTPTimeout: getDurationOrDefault(common.EnvPredictorHTTPTimeout, httpTimeout),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Resolution:           getIntOrDefault(common.EnvResolution, common.DefaultResolution),
		Workers:              getIntOrDefault(common.EnvWorkers, runtime.GOMAXPROCS(0)),
		PredictorTimeout:     getDurationOrDefault(common.EnvPredictorTimeout, 0),
		LowDensityWarn:       getBoolOrDefault(common.EnvLowDensityWarn, false),
		Centering:            getEnvOrDefault(common.EnvCentering, common.DefaultCentering),
		FeatureNames:         splitOrDefault(os.Getenv(common.EnvFeatureNames), nil),
		TargetNames:          splitOrDefault(os.Getenv(common.EnvTargetNames), nil),
		StorePath:            os.Getenv(common.EnvStorePath), // optional
		StoreCompression:     getEnvOrDefault(common.EnvStoreCompression, common.DefaultStoreCompression),
		LogLevel:             getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		MetricsNamespace:     getEnvOrDefault(common.EnvMetricsNamespace, common.DefaultMetricsNamespace),
		PredictorURL:         os.Getenv(common.EnvPredictorURL), // optional
		PredictorHTTPTimeout: getDurationOrDefault(common.EnvPredictorHTTPTimeout, common.DefaultPredictorHTTPTimeout),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ExplainerConfig returns the explainer configuration described by the settings.
func (s *Settings) ExplainerConfig() ale.Config {
	return ale.Config{
		FeatureNames:     append([]string(nil), s.FeatureNames...),
		TargetNames:      append([]string(nil), s.TargetNames...),
		Resolution:       s.Resolution,
		LowDensityWarn:   s.LowDensityWarn,
		Workers:          s.Workers,
		PredictorTimeout: s.PredictorTimeout,
		Centering:        ale.CenteringMethod(s.Centering),
	}
}

// Level returns the parsed log level, falling back to info.
func (s *Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || s.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return level
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getListFromEnvOrConfig(key string, configValues []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, nil)
	}
	return configValues
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate integer values
	if settings.Resolution < common.MinResolution || settings.Resolution > common.MaxResolution {
		return fmt.Errorf("resolution must be between %d and %d, got %d", common.MinResolution, common.MaxResolution, settings.Resolution)
	}
	if settings.Workers < common.MinWorkers || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d", common.MinWorkers, common.MaxWorkers, settings.Workers)
	}

	// Validate time durations
	if settings.PredictorTimeout < 0 || settings.PredictorTimeout > common.MaxPredictorTimeout {
		return fmt.Errorf("predictor timeout must be between 0 and %v, got %v", common.MaxPredictorTimeout, settings.PredictorTimeout)
	}
	if settings.PredictorURL != "" {
		if settings.PredictorHTTPTimeout < time.Second || settings.PredictorHTTPTimeout > common.MaxPredictorTimeout {
			return fmt.Errorf("predictor HTTP timeout must be between 1s and %v, got %v", common.MaxPredictorTimeout, settings.PredictorHTTPTimeout)
		}
		if !strings.HasPrefix(settings.PredictorURL, "http://") && !strings.HasPrefix(settings.PredictorURL, "https://") {
			return fmt.Errorf("predictor URL must use http or https, got %q", settings.PredictorURL)
		}
	}

	// Validate enumerations
	switch ale.CenteringMethod(settings.Centering) {
	case ale.CenteringTrapezoid, ale.CenteringInterpolated:
	default:
		return fmt.Errorf("centering must be %q or %q, got %q", ale.CenteringTrapezoid, ale.CenteringInterpolated, settings.Centering)
	}
	switch settings.StoreCompression {
	case common.CompressionNone, common.CompressionZstd:
	default:
		return fmt.Errorf("store compression must be %q or %q, got %q", common.CompressionNone, common.CompressionZstd, settings.StoreCompression)
	}
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}
	if settings.MetricsNamespace == "" {
		return fmt.Errorf("metrics namespace cannot be empty")
	}

	// Validate names
	for i, name := range settings.FeatureNames {
		if name == "" {
			return fmt.Errorf("feature name %d cannot be empty", i)
		}
	}
	for i, name := range settings.TargetNames {
		if name == "" {
			return fmt.Errorf("target name %d cannot be empty", i)
		}
	}

	return nil
}
