// Package predictor defines the prediction capability consumed by the ALE engine.
// A predictor is any function from an n×d feature matrix to an n×m output matrix,
// where m is the number of targets (regression outputs or class probabilities).
//
// The package ships a function adapter, an in-process linear model and an HTTP
// client for models served behind a remote endpoint.
package predictor

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrDimension is returned when an input matrix does not match the model's width.
var ErrDimension = errors.New("predictor: dimension mismatch")

// Predictor is the opaque model capability used by explainers.
// Implementations must not mutate X and should honour ctx cancellation.
type Predictor interface {
	// Predict returns one output row per input row.
	Predict(ctx context.Context, X mat.Matrix) (mat.Matrix, error)
}

// Func adapts an ordinary function to the Predictor interface.
type Func func(ctx context.Context, X mat.Matrix) (mat.Matrix, error)

// Predict calls f(ctx, X).
func (f Func) Predict(ctx context.Context, X mat.Matrix) (mat.Matrix, error) {
	return f(ctx, X)
}

// Linear is a multi-output linear model: Y = X·W + B.
type Linear struct {
	weights *mat.Dense
	bias    []float64
}

// NewLinear creates a single-target linear model with the given coefficients.
func NewLinear(bias float64, weights ...float64) *Linear {
	w := mat.NewDense(len(weights), 1, append([]float64(nil), weights...))
	return &Linear{weights: w, bias: []float64{bias}}
}

// NewMultiLinear creates a linear model from a d×m weight matrix and m biases.
// A nil bias means zero intercepts.
func NewMultiLinear(weights mat.Matrix, bias []float64) (*Linear, error) {
	d, m := weights.Dims()
	if d == 0 || m == 0 {
		return nil, fmt.Errorf("%w: empty weight matrix", ErrDimension)
	}
	if bias == nil {
		bias = make([]float64, m)
	}
	if len(bias) != m {
		return nil, fmt.Errorf("%w: %d biases for %d targets", ErrDimension, len(bias), m)
	}
	return &Linear{
		weights: mat.DenseCopyOf(weights),
		bias:    append([]float64(nil), bias...),
	}, nil
}

// Predict implements Predictor.
func (l *Linear) Predict(ctx context.Context, X mat.Matrix) (mat.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	d, m := l.weights.Dims()
	if c != d {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrDimension, d, c)
	}
	if r == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDimension)
	}

	out := mat.NewDense(r, m, nil)
	out.Mul(X, l.weights)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += l.bias[j]
		}
	}
	return out, nil
}

// Targets returns the number of outputs produced by the model.
func (l *Linear) Targets() int {
	_, m := l.weights.Dims()
	return m
}
