package ale

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu                sync.Mutex
	explains          int
	explainFailures   int
	explainDuration   float64
	featuresExplained int
	predictorCalls    int
	predictorFailures int
	predictorTimeouts int
	predictorLatency  float64
	lowDensitySpans   int
}

func (m *MockMetrics) ExplainInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explains++
}

func (m *MockMetrics) ExplainFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explainFailures++
}

func (m *MockMetrics) ExplainDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explainDuration += v
}

func (m *MockMetrics) FeaturesExplainedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.featuresExplained++
}

func (m *MockMetrics) PredictorCallsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictorCalls++
}

func (m *MockMetrics) PredictorFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictorFailures++
}

func (m *MockMetrics) PredictorTimeoutsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictorTimeouts++
}

func (m *MockMetrics) PredictorLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictorLatency += v
}

func (m *MockMetrics) LowDensitySpansInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lowDensitySpans++
}

// recordingPredictor wraps a predict function and records the row count of every call.
type recordingPredictor struct {
	mu      sync.Mutex
	predict func(ctx context.Context, X mat.Matrix) (mat.Matrix, error)
	rows    []int
}

func (p *recordingPredictor) Predict(ctx context.Context, X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	p.mu.Lock()
	p.rows = append(p.rows, r)
	p.mu.Unlock()
	return p.predict(ctx, X)
}

func (p *recordingPredictor) calls() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.rows...)
}

// columnMatrix builds an n×1 matrix from values.
func columnMatrix(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, append([]float64(nil), values...))
}
