package ale

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CenteringMethod selects how the accumulated curve is shifted to zero mean.
type CenteringMethod string

const (
	// CenteringTrapezoid subtracts the occupancy-weighted mean of bin midpoints.
	// It is the default. It is not exact for linear models: data that is uneven
	// within its bins leaves a constant offset, so the doubling model 2x on 1..10
	// centers at 2x-8.2 rather than 2x-9.
	CenteringTrapezoid CenteringMethod = "trapezoid"
	// CenteringInterpolated subtracts the mean of the curve linearly interpolated at
	// every instance's own value. It is exact for additive linear models.
	CenteringInterpolated CenteringMethod = "interpolated"
)

// Accumulate turns K×m local effects into the (K+1)×m running sum with a zero first row.
func Accumulate(local mat.Matrix) *mat.Dense {
	k, m := local.Dims()
	acc := mat.NewDense(k+1, m, nil)
	for b := 0; b < k; b++ {
		prev := acc.RawRowView(b)
		next := acc.RawRowView(b + 1)
		for t := 0; t < m; t++ {
			next[t] = prev[t] + local.At(b, t)
		}
	}
	return acc
}

// Center subtracts, per target, the mean of bin midpoints (ale[k]+ale[k+1])/2 weighted
// by the share of instances in bin k. It returns the centered curve and the offset.
func Center(acc mat.Matrix, counts []int) (*mat.Dense, []float64) {
	rows, m := acc.Dims()
	total := float64(sumInts(counts))

	offset := make([]float64, m)
	if total > 0 {
		for k := 0; k < rows-1 && k < len(counts); k++ {
			if counts[k] == 0 {
				continue
			}
			w := float64(counts[k]) / total
			for t := 0; t < m; t++ {
				offset[t] += w * 0.5 * (acc.At(k, t) + acc.At(k+1, t))
			}
		}
	}
	return shift(acc, offset), offset
}

// CenterInterpolated subtracts, per target, the mean over instances of the curve
// evaluated at each instance's position inside its bin.
func CenterInterpolated(acc mat.Matrix, bins []int, fractions []float64) (*mat.Dense, []float64) {
	_, m := acc.Dims()
	offset := make([]float64, m)
	if len(bins) == 0 {
		return shift(acc, offset), offset
	}

	for i, k := range bins {
		f := fractions[i]
		for t := 0; t < m; t++ {
			lo, hi := acc.At(k, t), acc.At(k+1, t)
			offset[t] += lo + f*(hi-lo)
		}
	}
	floats.Scale(1/float64(len(bins)), offset)
	return shift(acc, offset), offset
}

// WeightedMean returns the per-target occupancy-weighted mean of bin midpoints.
// A centered curve has a weighted mean of zero.
func WeightedMean(curve mat.Matrix, counts []int) []float64 {
	_, mean := Center(curve, counts)
	return mean
}

func shift(acc mat.Matrix, offset []float64) *mat.Dense {
	rows, m := acc.Dims()
	out := mat.NewDense(rows, m, nil)
	for k := 0; k < rows; k++ {
		row := out.RawRowView(k)
		for t := 0; t < m; t++ {
			row[t] = acc.At(k, t) - offset[t]
		}
	}
	return out
}

func sumInts(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
