package metrics

// MetricsWrapper adapts Metrics to the hook interface the explainer reports to,
// so the ale package never imports Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) ExplainInc() {
	w.m.ExplainTotal.Inc()
}

func (w *MetricsWrapper) ExplainFailuresInc() {
	w.m.ExplainFailures.Inc()
}

func (w *MetricsWrapper) ExplainDurationObserve(v float64) {
	w.m.ExplainDuration.Observe(v)
}

func (w *MetricsWrapper) FeaturesExplainedInc() {
	w.m.FeaturesExplained.Inc()
}

func (w *MetricsWrapper) PredictorCallsInc() {
	w.m.PredictorCalls.Inc()
}

func (w *MetricsWrapper) PredictorFailuresInc() {
	w.m.PredictorFailures.Inc()
}

func (w *MetricsWrapper) PredictorTimeoutsInc() {
	w.m.PredictorTimeouts.Inc()
}

func (w *MetricsWrapper) PredictorLatencyObserve(v float64) {
	w.m.PredictorLatency.Observe(v)
}

func (w *MetricsWrapper) LowDensitySpansInc() {
	w.m.LowDensitySpans.Inc()
}

func (w *MetricsWrapper) StoreWritesInc() {
	w.m.StoreWrites.Inc()
}

func (w *MetricsWrapper) CacheHitsInc() {
	w.m.CacheHits.Inc()
}
