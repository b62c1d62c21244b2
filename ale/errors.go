package ale

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPredictor is returned when an explainer is built without a predictor.
	ErrNoPredictor = errors.New("ale: predictor is nil")
	// ErrEmptyInput is returned for a nil matrix or one with no rows or columns.
	ErrEmptyInput = errors.New("ale: input matrix is empty")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("ale: invalid config")
	// ErrNonFinite is returned when a feature column holds NaN or ±Inf.
	ErrNonFinite = errors.New("ale: non-finite feature value")
	// ErrUnexpectedShape is wrapped by PredictorError when the output has the wrong dimensions.
	ErrUnexpectedShape = errors.New("ale: unexpected predictor output shape")
	// ErrCategoryOrder is returned when a category ordering is not a permutation of the categories.
	ErrCategoryOrder = errors.New("ale: category order is not a permutation of the observed categories")
)

// DegenerateFeatureError reports a feature with fewer than two distinct values.
type DegenerateFeatureError struct {
	Feature int
	Unique  int
}

func (e *DegenerateFeatureError) Error() string {
	return fmt.Sprintf("ale: feature %d is degenerate: %d distinct value(s), need at least 2", e.Feature, e.Unique)
}

// InvalidFeatureError reports a requested feature index outside the matrix.
type InvalidFeatureError struct {
	Feature int
	Columns int
}

func (e *InvalidFeatureError) Error() string {
	return fmt.Sprintf("ale: feature index %d out of range for %d column(s)", e.Feature, e.Columns)
}

// PredictorError reports a failed, timed out or malformed predictor call.
// Feature and Bin are -1 when the call was not tied to one feature or bin.
type PredictorError struct {
	Feature int
	Bin     int
	Err     error
}

func (e *PredictorError) Error() string {
	return fmt.Sprintf("ale: predictor failed (feature %d, bin %d): %v", e.Feature, e.Bin, e.Err)
}

func (e *PredictorError) Unwrap() error { return e.Err }

// ShapeMismatchError reports disagreeing lengths: configured names against the input,
// or a broken internal post-condition. Feature is -1 for input-level mismatches.
type ShapeMismatchError struct {
	Feature int
	What    string
	Want    int
	Got     int
}

func (e *ShapeMismatchError) Error() string {
	if e.Feature < 0 {
		return fmt.Sprintf("ale: shape mismatch in %s: want %d, got %d", e.What, e.Want, e.Got)
	}
	return fmt.Sprintf("ale: shape mismatch in %s for feature %d: want %d, got %d", e.What, e.Feature, e.Want, e.Got)
}
