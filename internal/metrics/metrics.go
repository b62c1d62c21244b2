// Package metrics provides Prometheus metrics for ALE explanations.
// It tracks explain calls, per-feature work, predictor traffic and the
// explanation store, for exposure via a Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ale"

// Metrics holds all Prometheus metrics for the explainer.
type Metrics struct {
	// Explain metrics
	ExplainTotal      prometheus.Counter   // Total number of Explain calls
	ExplainFailures   prometheus.Counter   // Explain calls that returned an error
	ExplainDuration   prometheus.Histogram // End-to-end Explain duration
	FeaturesExplained prometheus.Counter   // Features whose curve was computed
	LowDensitySpans   prometheus.Counter   // Spans of empty bins found

	// Predictor metrics
	PredictorCalls    prometheus.Counter   // Batched predictor invocations
	PredictorFailures prometheus.Counter   // Failed, malformed or timed out invocations
	PredictorTimeouts prometheus.Counter   // Invocations that hit the per-call timeout
	PredictorLatency  prometheus.Histogram // Predictor invocation latency

	// Store metrics
	StoreWrites prometheus.Counter // Explanations persisted
	CacheHits   prometheus.Counter // Explain calls served from the store

	namespace string
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	return NewWithNamespace(registerer, DefaultNamespace)
}

// NewWithNamespace creates metrics on registerer with every name prefixed by namespace.
func NewWithNamespace(registerer prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		namespace: namespace,
		ExplainTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_total",
			Help:      "Total number of Explain calls",
		}),
		ExplainFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_failures_total",
			Help:      "Total number of Explain calls that failed",
		}),
		ExplainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "explain_duration_seconds",
			Help:      "Duration of Explain calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		FeaturesExplained: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_explained_total",
			Help:      "Total number of feature curves computed",
		}),
		LowDensitySpans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_density_spans_total",
			Help:      "Total number of empty-bin spans found",
		}),
		PredictorCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_calls_total",
			Help:      "Total number of batched predictor calls",
		}),
		PredictorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_failures_total",
			Help:      "Total number of failed predictor calls",
		}),
		PredictorTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_timeouts_total",
			Help:      "Total number of predictor calls that timed out",
		}),
		PredictorLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predictor_latency_seconds",
			Help:      "Predictor call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		StoreWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Total number of explanations written to the store",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of Explain calls served from the store",
		}),
	}
}

// FailureRate returns the share of Explain calls that failed, or 0 before any call.
func (m *Metrics) FailureRate(gatherer prometheus.Gatherer) float64 {
	var total, failures float64

	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case prometheus.BuildFQName(m.namespace, "", "explain_total"):
			for _, metric := range mf.Metric {
				total = metric.GetCounter().GetValue()
			}
		case prometheus.BuildFQName(m.namespace, "", "explain_failures_total"):
			for _, metric := range mf.Metric {
				failures = metric.GetCounter().GetValue()
			}
		}
	}

	// Avoid division by zero
	if total == 0 {
		return 0
	}
	return failures / total
}
