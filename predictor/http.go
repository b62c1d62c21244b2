package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"gonum.org/v1/gonum/mat"
)

// HTTP is a Predictor backed by a remote model server.
//
// Each Predict call issues a single POST with the whole batch:
//
//	{"instances": [[x11, x12, ...], ...]}
//
// and expects
//
//	{"predictions": [[y11, y12, ...], ...]}
//
// or {"error": "..."} on failure.
type HTTP struct {
	endpoint string
	rest     *resty.Client
}

type httpRequest struct {
	Instances [][]float64 `json:"instances"`
}

type httpResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewHTTP creates a remote predictor posting to endpoint.
func NewHTTP(endpoint string, timeout time.Duration) *HTTP {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")
	return &HTTP{endpoint: endpoint, rest: r}
}

// Predict implements Predictor.
func (h *HTTP) Predict(ctx context.Context, X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	req := httpRequest{Instances: make([][]float64, rows)}
	for i := 0; i < rows; i++ {
		req.Instances[i] = mat.Row(make([]float64, cols), i, X)
	}

	result := &httpResponse{}
	resp, err := h.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		SetError(result).
		Post(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if result.Error != "" {
			return nil, fmt.Errorf("model server: status %d: %s", resp.StatusCode(), result.Error)
		}
		return nil, fmt.Errorf("model server: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != "" {
		return nil, fmt.Errorf("model server: %s", result.Error)
	}

	return toDense(result.Predictions, rows)
}

func toDense(preds [][]float64, rows int) (*mat.Dense, error) {
	if len(preds) != rows {
		return nil, fmt.Errorf("%w: expected %d prediction rows, got %d", ErrDimension, rows, len(preds))
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty prediction batch", ErrDimension)
	}
	m := len(preds[0])
	if m == 0 {
		return nil, fmt.Errorf("%w: prediction rows have no targets", ErrDimension)
	}

	out := mat.NewDense(rows, m, nil)
	for i, p := range preds {
		if len(p) != m {
			return nil, fmt.Errorf("%w: row %d has %d targets, expected %d", ErrDimension, i, len(p), m)
		}
		out.SetRow(i, p)
	}
	return out, nil
}
