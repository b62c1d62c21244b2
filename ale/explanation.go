package ale

import (
	"encoding/json"
	"fmt"
)

// LowDensityWarning marks a contiguous span of bins that received no instances.
// It never aborts an explanation: the empty bins contribute a zero local effect.
type LowDensityWarning struct {
	Feature  int `json:"feature"`
	FirstBin int `json:"first_bin"`
	LastBin  int `json:"last_bin"`
}

func (w LowDensityWarning) String() string {
	return fmt.Sprintf("feature %d: bins %d-%d hold no instances", w.Feature, w.FirstBin, w.LastBin)
}

// Meta records the parameters an Explanation was computed with.
type Meta struct {
	Name           string          `json:"name"`
	Resolution     int             `json:"resolution"`
	Centering      CenteringMethod `json:"centering"`
	LowDensityWarn bool            `json:"low_density_warn"`
	Features       []int           `json:"features"`
}

// FeatureEffect is the ALE curve of one feature. Accessors return copies.
type FeatureEffect struct {
	index       int
	name        string
	categorical bool
	values      []float64
	ale         [][]float64 // [target][edge]
	ale0        []float64
	deciles     []float64
	counts      []int
}

// Index returns the column index of the feature.
func (f FeatureEffect) Index() int { return f.index }

// Name returns the feature name.
func (f FeatureEffect) Name() string { return f.name }

// Categorical reports whether the feature was binned by category.
func (f FeatureEffect) Categorical() bool { return f.categorical }

// FeatureValues returns the bin edges the curve is evaluated at.
func (f FeatureEffect) FeatureValues() []float64 { return append([]float64(nil), f.values...) }

// ALEValues returns one centered curve per target, each aligned with FeatureValues.
func (f FeatureEffect) ALEValues() [][]float64 {
	out := make([][]float64, len(f.ale))
	for t, curve := range f.ale {
		out[t] = append([]float64(nil), curve...)
	}
	return out
}

// ALE returns the centered curve for one target.
func (f FeatureEffect) ALE(target int) []float64 { return append([]float64(nil), f.ale[target]...) }

// ALE0 returns the per-target offset subtracted during centering.
func (f FeatureEffect) ALE0() []float64 { return append([]float64(nil), f.ale0...) }

// Deciles returns the 10th..100th percentiles of the feature.
func (f FeatureEffect) Deciles() []float64 { return append([]float64(nil), f.deciles...) }

// BinCounts returns the number of instances assigned to each bin.
func (f FeatureEffect) BinCounts() []int { return append([]int(nil), f.counts...) }

// Explanation is the immutable result of one Explain call.
type Explanation struct {
	meta          Meta
	features      []FeatureEffect
	targetNames   []string
	constantValue []float64
	warnings      []LowDensityWarning
}

// Meta returns the parameters used to compute the explanation.
func (e *Explanation) Meta() Meta {
	m := e.meta
	m.Features = append([]int(nil), e.meta.Features...)
	return m
}

// Features returns the per-feature results in ascending column order.
func (e *Explanation) Features() []FeatureEffect {
	return append([]FeatureEffect(nil), e.features...)
}

// Feature returns the result for column index i.
func (e *Explanation) Feature(i int) (FeatureEffect, bool) {
	for _, f := range e.features {
		if f.index == i {
			return f, true
		}
	}
	return FeatureEffect{}, false
}

// FeatureNames returns the names of the explained features, in result order.
func (e *Explanation) FeatureNames() []string {
	names := make([]string, len(e.features))
	for i, f := range e.features {
		names[i] = f.name
	}
	return names
}

// TargetNames returns one name per predictor output.
func (e *Explanation) TargetNames() []string { return append([]string(nil), e.targetNames...) }

// ConstantValue returns the mean prediction over the explained data, per target.
func (e *Explanation) ConstantValue() []float64 { return append([]float64(nil), e.constantValue...) }

// Warnings returns the low-density spans found, if warnings were enabled.
func (e *Explanation) Warnings() []LowDensityWarning {
	return append([]LowDensityWarning(nil), e.warnings...)
}

// featureResult is the output of one per-feature pipeline run.
type featureResult struct {
	index       int
	categorical bool
	edges       []float64
	centered    [][]float64 // [target][edge]
	ale0        []float64
	deciles     []float64
	counts      []int
	warnings    []LowDensityWarning
}

// builder assembles per-feature results into an Explanation.
type builder struct {
	meta          Meta
	featureNames  []string
	targetNames   []string
	constantValue []float64
	results       []featureResult
}

func (b *builder) add(r featureResult) {
	b.results = append(b.results, r)
}

// build checks the shape invariants and returns the Explanation. Results are emitted
// in the order added, which the explainer keeps equal to ascending feature index.
func (b *builder) build() (*Explanation, error) {
	exp := &Explanation{
		meta:          b.meta,
		targetNames:   append([]string(nil), b.targetNames...),
		constantValue: append([]float64(nil), b.constantValue...),
		features:      make([]FeatureEffect, 0, len(b.results)),
	}

	for _, r := range b.results {
		if len(r.centered) != len(b.targetNames) {
			return nil, &ShapeMismatchError{Feature: r.index, What: "ale targets", Want: len(b.targetNames), Got: len(r.centered)}
		}
		for _, curve := range r.centered {
			if len(curve) != len(r.edges) {
				return nil, &ShapeMismatchError{Feature: r.index, What: "ale values", Want: len(r.edges), Got: len(curve)}
			}
		}
		if len(r.counts) != len(r.edges)-1 {
			return nil, &ShapeMismatchError{Feature: r.index, What: "bin counts", Want: len(r.edges) - 1, Got: len(r.counts)}
		}

		exp.features = append(exp.features, FeatureEffect{
			index:       r.index,
			name:        b.featureNames[r.index],
			categorical: r.categorical,
			values:      r.edges,
			ale:         r.centered,
			ale0:        r.ale0,
			deciles:     r.deciles,
			counts:      r.counts,
		})
		exp.warnings = append(exp.warnings, r.warnings...)
	}
	return exp, nil
}

type featureJSON struct {
	Index         int         `json:"index"`
	Name          string      `json:"name"`
	Categorical   bool        `json:"categorical,omitempty"`
	FeatureValues []float64   `json:"feature_values"`
	ALEValues     [][]float64 `json:"ale_values"`
	ALE0          []float64   `json:"ale0"`
	Deciles       []float64   `json:"feature_deciles"`
	BinCounts     []int       `json:"bin_counts"`
}

type explanationJSON struct {
	Meta          Meta                `json:"meta"`
	Features      []featureJSON       `json:"features"`
	TargetNames   []string            `json:"target_names"`
	ConstantValue []float64           `json:"constant_value"`
	Warnings      []LowDensityWarning `json:"warnings,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Explanation) MarshalJSON() ([]byte, error) {
	out := explanationJSON{
		Meta:          e.meta,
		TargetNames:   e.targetNames,
		ConstantValue: e.constantValue,
		Warnings:      e.warnings,
		Features:      make([]featureJSON, len(e.features)),
	}
	for i, f := range e.features {
		out.Features[i] = featureJSON{
			Index:         f.index,
			Name:          f.name,
			Categorical:   f.categorical,
			FeatureValues: f.values,
			ALEValues:     f.ale,
			ALE0:          f.ale0,
			Deciles:       f.deciles,
			BinCounts:     f.counts,
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded value is checked against the
// same shape invariants as a freshly computed one.
func (e *Explanation) UnmarshalJSON(data []byte) error {
	var in explanationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	names := make(map[int]string, len(in.Features))
	maxIndex := -1
	for _, f := range in.Features {
		if f.Index < 0 {
			return &InvalidFeatureError{Feature: f.Index, Columns: len(in.Features)}
		}
		names[f.Index] = f.Name
		if f.Index > maxIndex {
			maxIndex = f.Index
		}
	}
	featureNames := make([]string, maxIndex+1)
	for i, n := range names {
		featureNames[i] = n
	}

	b := &builder{
		meta:          in.Meta,
		featureNames:  featureNames,
		targetNames:   in.TargetNames,
		constantValue: in.ConstantValue,
	}
	for _, f := range in.Features {
		b.add(featureResult{
			index:       f.Index,
			categorical: f.Categorical,
			edges:       f.FeatureValues,
			centered:    f.ALEValues,
			ale0:        f.ALE0,
			deciles:     f.Deciles,
			counts:      f.BinCounts,
		})
	}
	built, err := b.build()
	if err != nil {
		return err
	}
	built.warnings = in.Warnings
	*e = *built
	return nil
}
