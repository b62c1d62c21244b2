package ale

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tanaysd/alibi/predictor"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Explainer computes ALE curves for a fixed predictor and configuration.
// It holds no per-call state and is safe for concurrent use.
type Explainer struct {
	cfg     Config
	est     *estimator
	metrics MetricsInterface
}

// NewExplainer validates cfg and returns an explainer without metrics.
func NewExplainer(p predictor.Predictor, cfg Config) (*Explainer, error) {
	return NewExplainerWithMetrics(p, cfg, nil)
}

// NewExplainerWithMetrics validates cfg and returns an explainer reporting to m.
func NewExplainerWithMetrics(p predictor.Predictor, cfg Config, m MetricsInterface) (*Explainer, error) {
	if p == nil {
		return nil, ErrNoPredictor
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Explainer{
		cfg: cfg,
		est: &estimator{
			predictor: p,
			timeout:   cfg.PredictorTimeout,
			metrics:   m,
		},
		metrics: m,
	}, nil
}

// Config returns the validated configuration, defaults filled in.
func (e *Explainer) Config() Config {
	c := e.cfg
	c.FeatureNames = append([]string(nil), e.cfg.FeatureNames...)
	c.TargetNames = append([]string(nil), e.cfg.TargetNames...)
	return c
}

// Explain computes the ALE curves of the given features (all columns when features is
// empty) over X. The first error aborts the call and no partial result is returned.
func (e *Explainer) Explain(ctx context.Context, X mat.Matrix, features []int) (*Explanation, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.ExplainInc()
	}

	exp, err := e.explain(ctx, X, features)

	if e.metrics != nil {
		e.metrics.ExplainDurationObserve(time.Since(start).Seconds())
		if err != nil {
			e.metrics.ExplainFailuresInc()
		}
	}
	if err != nil {
		log.Error().Err(err).Ints("features", features).Msg("ALE explanation failed")
		return nil, err
	}

	log.Debug().
		Int("features", len(exp.features)).
		Int("targets", len(exp.targetNames)).
		Dur("duration", time.Since(start)).
		Msg("ALE explanation computed")
	return exp, nil
}

func (e *Explainer) explain(ctx context.Context, X mat.Matrix, features []int) (*Explanation, error) {
	if IsEmpty(X) {
		return nil, ErrEmptyInput
	}
	n, d := X.Dims()
	if len(e.cfg.FeatureNames) > 0 && len(e.cfg.FeatureNames) != d {
		return nil, &ShapeMismatchError{Feature: -1, What: "feature names", Want: d, Got: len(e.cfg.FeatureNames)}
	}

	selected, err := selectFeatures(features, d)
	if err != nil {
		return nil, err
	}
	if err := e.checkConfiguredFeatures(d); err != nil {
		return nil, err
	}

	x := mat.DenseCopyOf(X)

	// The full-data prediction fixes the number of targets and the constant value.
	base, err := e.est.call(ctx, x, 0)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &PredictorError{Feature: -1, Bin: -1, Err: err}
	}
	_, m := base.Dims()
	if len(e.cfg.TargetNames) > 0 && len(e.cfg.TargetNames) != m {
		return nil, &ShapeMismatchError{Feature: -1, What: "target names", Want: m, Got: len(e.cfg.TargetNames)}
	}
	constant := make([]float64, m)
	for t := 0; t < m; t++ {
		constant[t] = floats.Sum(mat.Col(nil, t, base)) / float64(n)
	}

	results := make([]featureResult, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, f := range selected {
		i, f := i, f
		g.Go(func() error {
			r, err := e.explainFeature(gctx, x, f, m)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// the caller's own cancellation wins over whatever error it surfaced as
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	b := &builder{
		meta: Meta{
			Name:           "ALE",
			Resolution:     e.cfg.Resolution,
			Centering:      e.cfg.Centering,
			LowDensityWarn: e.cfg.LowDensityWarn,
			Features:       selected,
		},
		featureNames:  names(e.cfg.FeatureNames, d, "f_%d"),
		targetNames:   names(e.cfg.TargetNames, m, "c_%d"),
		constantValue: constant,
	}
	for _, r := range results {
		b.add(r)
	}
	return b.build()
}

// explainFeature runs binning, estimation, accumulation and centering for one column.
func (e *Explainer) explainFeature(ctx context.Context, x *mat.Dense, feature, targets int) (featureResult, error) {
	start := time.Now()
	column := mat.Col(nil, feature, x)
	for r, v := range column {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return featureResult{}, fmt.Errorf("%w: feature %d row %d", ErrNonFinite, feature, r)
		}
	}

	grid, err := e.grid(feature, column)
	if err != nil {
		return featureResult{}, err
	}

	a := AssignBins(column, grid)
	local, err := e.est.localEffects(ctx, x, feature, grid, a, targets)
	if err != nil {
		log.Error().
			Err(err).
			Int("feature", feature).
			Int("bins", grid.Bins()).
			Msg("Local effect estimation failed")
		return featureResult{}, err
	}

	acc := Accumulate(local)
	var centered *mat.Dense
	var offset []float64
	switch e.cfg.Centering {
	case CenteringInterpolated:
		fractions := make([]float64, len(column))
		for i, v := range column {
			fractions[i] = grid.fraction(v, a.Bins[i])
		}
		centered, offset = CenterInterpolated(acc, a.Bins, fractions)
	default:
		centered, offset = Center(acc, a.Counts)
	}

	r := featureResult{
		index:       feature,
		categorical: grid.Categorical(),
		edges:       grid.Edges,
		centered:    columns(centered),
		ale0:        offset,
		deciles:     Deciles(column),
		counts:      a.Counts,
	}
	if e.cfg.LowDensityWarn {
		r.warnings = lowDensitySpans(feature, a.Counts)
		for _, w := range r.warnings {
			log.Warn().
				Int("feature", w.Feature).
				Int("first_bin", w.FirstBin).
				Int("last_bin", w.LastBin).
				Msg("Low density: bins hold no instances")
			if e.metrics != nil {
				e.metrics.LowDensitySpansInc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.FeaturesExplainedInc()
	}
	log.Debug().
		Int("feature", feature).
		Int("bins", grid.Bins()).
		Dur("duration", time.Since(start)).
		Msg("Feature explained")
	return r, nil
}

func (e *Explainer) grid(feature int, column []float64) (Grid, error) {
	if order, ok := e.cfg.Categorical[feature]; ok {
		return CategoricalEdges(feature, column, order)
	}
	var edges []float64
	var err error
	if points, ok := e.cfg.GridPoints[feature]; ok {
		edges, err = GridEdges(column, points)
	} else {
		edges, err = QuantileEdges(column, e.cfg.Resolution)
	}
	if err != nil {
		var degenerate *DegenerateFeatureError
		if errors.As(err, &degenerate) {
			degenerate.Feature = feature
		}
		return Grid{}, err
	}
	return Grid{Edges: edges}, nil
}

// checkConfiguredFeatures rejects categorical or grid entries for columns X does not have.
func (e *Explainer) checkConfiguredFeatures(d int) error {
	for f := range e.cfg.Categorical {
		if f >= d {
			return &InvalidFeatureError{Feature: f, Columns: d}
		}
	}
	for f := range e.cfg.GridPoints {
		if f >= d {
			return &InvalidFeatureError{Feature: f, Columns: d}
		}
	}
	return nil
}

// selectFeatures validates the requested indices and returns them sorted and deduplicated.
func selectFeatures(features []int, d int) ([]int, error) {
	if len(features) == 0 {
		all := make([]int, d)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]bool, len(features))
	selected := make([]int, 0, len(features))
	for _, f := range features {
		if f < 0 || f >= d {
			return nil, &InvalidFeatureError{Feature: f, Columns: d}
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		selected = append(selected, f)
	}
	sort.Ints(selected)
	return selected, nil
}

// lowDensitySpans returns one warning per maximal run of empty bins.
func lowDensitySpans(feature int, counts []int) []LowDensityWarning {
	var spans []LowDensityWarning
	for k := 0; k < len(counts); k++ {
		if counts[k] != 0 {
			continue
		}
		first := k
		for k+1 < len(counts) && counts[k+1] == 0 {
			k++
		}
		spans = append(spans, LowDensityWarning{Feature: feature, FirstBin: first, LastBin: k})
	}
	return spans
}

// columns splits a (K+1)×m matrix into m curves of length K+1.
func columns(m *mat.Dense) [][]float64 {
	_, c := m.Dims()
	out := make([][]float64, c)
	for t := range out {
		out[t] = mat.Col(nil, t, m)
	}
	return out
}

func names(given []string, n int, format string) []string {
	if len(given) == n {
		return append([]string(nil), given...)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, i)
	}
	return out
}
