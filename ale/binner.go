package ale

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// decileCount is the number of decile markers kept per feature (10th..100th percentile).
const decileCount = 10

// CategoryOrder reorders the sorted categories of a feature before adjacent pairs are
// differenced. It must return a permutation of categories.
type CategoryOrder func(feature int, categories []float64) []float64

// Grid is the bin structure of one feature: K+1 edges delimiting K bins.
// For categorical features the edges are the categories in caller order and
// instances are placed by category position instead of by value.
type Grid struct {
	Edges     []float64
	positions map[float64]int
}

// Bins returns the number of bins K.
func (g Grid) Bins() int {
	return len(g.Edges) - 1
}

// Categorical reports whether instances are placed by category position.
func (g Grid) Categorical() bool {
	return g.positions != nil
}

// Bin returns the bin holding x. Bin k covers (edges[k], edges[k+1]]; the first bin
// also holds edges[0]. Values outside the grid are clamped into the first or last bin.
func (g Grid) Bin(x float64) int {
	var idx int
	if g.positions != nil {
		idx = g.positions[x]
	} else {
		idx = sort.SearchFloat64s(g.Edges, x)
	}
	k := idx - 1
	if k < 0 {
		k = 0
	}
	if last := g.Bins() - 1; k > last {
		k = last
	}
	return k
}

// fraction is where x sits inside bin k, from 0 at the lower edge to 1 at the upper edge.
func (g Grid) fraction(x float64, k int) float64 {
	if g.positions != nil {
		if g.positions[x] == k {
			return 0
		}
		return 1
	}
	lo, hi := g.Edges[k], g.Edges[k+1]
	switch {
	case x <= lo:
		return 0
	case x >= hi:
		return 1
	}
	return (x - lo) / (hi - lo)
}

// QuantileEdges derives bin edges for a numeric feature.
//
// Features with at most resolution distinct values use those values directly.
// Otherwise resolution+1 quantiles (including min and max) are taken and repeated
// edges are merged, so the grid has at most resolution bins.
func QuantileEdges(values []float64, resolution int) ([]float64, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidConfig, resolution)
	}

	sorted := sortedCopy(values)
	uniques := uniqueSorted(sorted)
	if len(uniques) < 2 {
		return nil, &DegenerateFeatureError{Feature: -1, Unique: len(uniques)}
	}
	if len(uniques) <= resolution {
		return uniques, nil
	}

	edges := make([]float64, 0, resolution+1)
	for k := 0; k <= resolution; k++ {
		p := float64(k) / float64(resolution)
		q := stat.Quantile(p, stat.LinInterp, sorted, nil)
		if len(edges) > 0 && q <= edges[len(edges)-1] {
			continue
		}
		edges = append(edges, q)
	}
	return edges, nil
}

// GridEdges builds edges from caller-supplied grid points. The data minimum and maximum
// are always edges; points outside that range are dropped.
func GridEdges(values []float64, points []float64) ([]float64, error) {
	sorted := sortedCopy(values)
	uniques := uniqueSorted(sorted)
	if len(uniques) < 2 {
		return nil, &DegenerateFeatureError{Feature: -1, Unique: len(uniques)}
	}
	lo, hi := uniques[0], uniques[len(uniques)-1]

	candidates := []float64{lo, hi}
	for _, p := range points {
		if p > lo && p < hi {
			candidates = append(candidates, p)
		}
	}
	sort.Float64s(candidates)
	return uniqueSorted(candidates), nil
}

// CategoricalEdges uses the distinct values of a discrete feature as edges, in sorted
// order or in the order returned by order.
func CategoricalEdges(feature int, values []float64, order CategoryOrder) (Grid, error) {
	categories := uniqueSorted(sortedCopy(values))
	if len(categories) < 2 {
		return Grid{}, &DegenerateFeatureError{Feature: feature, Unique: len(categories)}
	}

	if order != nil {
		ordered := order(feature, append([]float64(nil), categories...))
		if !isPermutation(categories, ordered) {
			return Grid{}, fmt.Errorf("%w: feature %d", ErrCategoryOrder, feature)
		}
		categories = ordered
	}

	positions := make(map[float64]int, len(categories))
	for i, c := range categories {
		positions[c] = i
	}
	return Grid{Edges: categories, positions: positions}, nil
}

// Deciles returns the 10th, 20th, ..., 100th percentiles of values.
func Deciles(values []float64) []float64 {
	sorted := sortedCopy(values)
	out := make([]float64, decileCount)
	if len(sorted) == 0 {
		return out
	}
	for i := range out {
		p := float64(i+1) / decileCount
		out[i] = stat.Quantile(p, stat.LinInterp, sorted, nil)
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}

func uniqueSorted(sorted []float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// isPermutation reports whether ordered holds exactly the (distinct) values of want.
func isPermutation(want, ordered []float64) bool {
	if len(want) != len(ordered) {
		return false
	}
	seen := make(map[float64]bool, len(want))
	for _, v := range want {
		seen[v] = false
	}
	for _, v := range ordered {
		used, ok := seen[v]
		if !ok || used {
			return false
		}
		seen[v] = true
	}
	return true
}
