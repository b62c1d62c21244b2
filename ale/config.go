package ale

import (
	"fmt"
	"math"
	"runtime"
	"time"
)

// DefaultResolution is the number of quantile bins used when Config.Resolution is zero.
const DefaultResolution = 10

// MetricsInterface defines the metrics hooks the explainer reports to.
// A nil MetricsInterface disables reporting.
type MetricsInterface interface {
	ExplainInc()
	ExplainFailuresInc()
	ExplainDurationObserve(float64)
	FeaturesExplainedInc()
	PredictorCallsInc()
	PredictorFailuresInc()
	PredictorTimeoutsInc()
	PredictorLatencyObserve(float64)
	LowDensitySpansInc()
}

// Config configures an Explainer. The zero value is usable: decile resolution,
// trapezoid centering, one worker per CPU and no predictor timeout.
type Config struct {
	// FeatureNames, when set, must have one entry per column of every X explained.
	FeatureNames []string
	// TargetNames, when set, must have one entry per predictor output.
	TargetNames []string
	// Resolution is the maximum number of quantile bins per numeric feature.
	Resolution int
	// LowDensityWarn records and logs spans of empty bins on the Explanation.
	LowDensityWarn bool
	// Workers bounds how many features are explained concurrently.
	Workers int
	// PredictorTimeout bounds every individual predictor call; zero means no bound.
	PredictorTimeout time.Duration
	// GridPoints overrides quantile binning for the listed features with fixed edges.
	GridPoints map[int][]float64
	// Categorical lists discrete features by column index. A nil order keeps the
	// categories sorted ascending.
	Categorical map[int]CategoryOrder
	// Centering selects the centering method; empty means CenteringTrapezoid.
	Centering CenteringMethod
}

// withDefaults validates c and fills in defaults.
func (c Config) withDefaults() (Config, error) {
	if c.Resolution < 0 {
		return c, fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidConfig, c.Resolution)
	}
	if c.Resolution == 0 {
		c.Resolution = DefaultResolution
	}

	if c.Workers < 0 {
		return c, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}

	if c.PredictorTimeout < 0 {
		return c, fmt.Errorf("%w: predictor timeout must not be negative, got %v", ErrInvalidConfig, c.PredictorTimeout)
	}

	switch c.Centering {
	case "":
		c.Centering = CenteringTrapezoid
	case CenteringTrapezoid, CenteringInterpolated:
	default:
		return c, fmt.Errorf("%w: unknown centering method %q", ErrInvalidConfig, c.Centering)
	}

	for f := range c.Categorical {
		if f < 0 {
			return c, fmt.Errorf("%w: categorical feature index %d is negative", ErrInvalidConfig, f)
		}
	}

	for f, points := range c.GridPoints {
		if f < 0 {
			return c, fmt.Errorf("%w: grid feature index %d is negative", ErrInvalidConfig, f)
		}
		if _, ok := c.Categorical[f]; ok {
			return c, fmt.Errorf("%w: feature %d is both categorical and gridded", ErrInvalidConfig, f)
		}
		for _, p := range points {
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return c, fmt.Errorf("%w: grid point %v for feature %d is not finite", ErrInvalidConfig, p, f)
			}
		}
	}

	for i, name := range c.FeatureNames {
		if name == "" {
			return c, fmt.Errorf("%w: feature name %d is empty", ErrInvalidConfig, i)
		}
	}
	for i, name := range c.TargetNames {
		if name == "" {
			return c, fmt.Errorf("%w: target name %d is empty", ErrInvalidConfig, i)
		}
	}

	c.FeatureNames = append([]string(nil), c.FeatureNames...)
	c.TargetNames = append([]string(nil), c.TargetNames...)
	return c, nil
}
