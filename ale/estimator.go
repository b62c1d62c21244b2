package ale

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/tanaysd/alibi/predictor"

	"gonum.org/v1/gonum/mat"
)

// Assignment maps every instance of one feature to its bin.
type Assignment struct {
	Bins    []int   // bin index per row
	Counts  []int   // instances per bin
	Members [][]int // row indices per bin, in row order
}

// AssignBins places each value of a feature column into exactly one bin of g.
func AssignBins(column []float64, g Grid) Assignment {
	k := g.Bins()
	a := Assignment{
		Bins:    make([]int, len(column)),
		Counts:  make([]int, k),
		Members: make([][]int, k),
	}
	for i, x := range column {
		b := g.Bin(x)
		a.Bins[i] = b
		a.Counts[b]++
		a.Members[b] = append(a.Members[b], i)
	}
	return a
}

// estimator evaluates the predictor on perturbed copies of the data.
type estimator struct {
	predictor predictor.Predictor
	timeout   time.Duration
	metrics   MetricsInterface
}

// LocalEffects computes the K×m matrix of per-bin average finite differences of p
// for one feature, without timeouts or metrics. Empty bins yield zero rows.
func LocalEffects(ctx context.Context, X mat.Matrix, feature int, g Grid, p predictor.Predictor) (*mat.Dense, Assignment, error) {
	if p == nil {
		return nil, Assignment{}, ErrNoPredictor
	}
	if IsEmpty(X) {
		return nil, Assignment{}, ErrEmptyInput
	}
	x := mat.DenseCopyOf(X)
	_, d := x.Dims()
	if feature < 0 || feature >= d {
		return nil, Assignment{}, &InvalidFeatureError{Feature: feature, Columns: d}
	}
	a := AssignBins(mat.Col(nil, feature, x), g)
	est := &estimator{predictor: p}
	local, err := est.localEffects(ctx, x, feature, g, a, 0)
	return local, a, err
}

// localEffects runs one batched predictor call per populated bin. When targets is 0 the
// width is taken from the first call and enforced on the rest.
func (e *estimator) localEffects(ctx context.Context, x *mat.Dense, feature int, g Grid, a Assignment, targets int) (*mat.Dense, error) {
	_, d := x.Dims()
	k := g.Bins()

	rows := make([][]float64, k)
	for b := 0; b < k; b++ {
		count := a.Counts[b]
		if count == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := mat.NewDense(2*count, d, nil)
		for j, r := range a.Members[b] {
			src := x.RawRowView(r)
			lower := batch.RawRowView(j)
			upper := batch.RawRowView(count + j)
			copy(lower, src)
			copy(upper, src)
			lower[feature] = g.Edges[b]
			upper[feature] = g.Edges[b+1]
		}

		out, err := e.call(ctx, batch, targets)
		if err != nil {
			return nil, &PredictorError{Feature: feature, Bin: b, Err: err}
		}
		_, m := out.Dims()
		if targets == 0 {
			targets = m
		}

		diff := make([]float64, targets)
		for j := 0; j < count; j++ {
			for t := 0; t < targets; t++ {
				diff[t] += out.At(count+j, t) - out.At(j, t)
			}
		}
		for t := range diff {
			diff[t] /= float64(count)
		}
		rows[b] = diff
	}

	if targets == 0 {
		// Unreachable for a grid built from the same column: at least one bin is populated.
		return nil, &ShapeMismatchError{Feature: feature, What: "populated bins", Want: 1, Got: 0}
	}

	local := mat.NewDense(k, targets, nil)
	for b, row := range rows {
		if row != nil {
			local.SetRow(b, row)
		}
	}
	return local, nil
}

type callResult struct {
	out mat.Matrix
	err error
}

// call invokes the predictor once, bounded by the per-call timeout. The predictor runs in
// its own goroutine so an unresponsive model is abandoned rather than awaited.
func (e *estimator) call(ctx context.Context, batch *mat.Dense, targets int) (mat.Matrix, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("predictor panicked: %v", r)}
			}
		}()
		out, err := e.predictor.Predict(ctx, batch)
		done <- callResult{out: out, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = callResult{err: ctx.Err()}
	}

	if e.metrics != nil {
		e.metrics.PredictorCallsInc()
		e.metrics.PredictorLatencyObserve(time.Since(start).Seconds())
	}

	if res.err == nil {
		res.err = checkShape(res.out, batch, targets)
	}
	if res.err != nil {
		if e.metrics != nil {
			e.metrics.PredictorFailuresInc()
			if errors.Is(res.err, context.DeadlineExceeded) {
				e.metrics.PredictorTimeoutsInc()
			}
		}
		return nil, res.err
	}
	return res.out, nil
}

func checkShape(out mat.Matrix, batch *mat.Dense, targets int) error {
	if isNilMatrix(out) {
		return fmt.Errorf("%w: nil output", ErrUnexpectedShape)
	}
	n, _ := batch.Dims()
	r, c := out.Dims()
	if r != n {
		return fmt.Errorf("%w: %d rows for a batch of %d", ErrUnexpectedShape, r, n)
	}
	if c == 0 || (targets > 0 && c != targets) {
		return fmt.Errorf("%w: %d targets, expected %d", ErrUnexpectedShape, c, targets)
	}
	return nil
}

// IsEmpty reports whether X is nil, a typed nil, or has no rows or columns.
func IsEmpty(X mat.Matrix) bool {
	if isNilMatrix(X) {
		return true
	}
	n, d := X.Dims()
	return n == 0 || d == 0
}

// isNilMatrix also catches typed nils such as (*mat.Dense)(nil), whose Dims panics.
func isNilMatrix(m mat.Matrix) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
