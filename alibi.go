// Package alibi ties the ALE explainer to its runtime: configuration, logging,
// Prometheus metrics and a persistent explanation store.
//
// Most callers only need Open (or OpenFromEnv) and Runtime.Explain:
//
//	rt, err := alibi.Open("churn-model", model,
//		alibi.WithConfig(ale.Config{FeatureNames: names}),
//		alibi.WithStore("/var/lib/ale", "zstd"),
//	)
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
//	exp, err := rt.Explain(ctx, X, nil)
package alibi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tanaysd/alibi/ale"
	"github.com/tanaysd/alibi/internal/cfg"
	"github.com/tanaysd/alibi/internal/common"
	"github.com/tanaysd/alibi/internal/metrics"
	"github.com/tanaysd/alibi/internal/storage"
	"github.com/tanaysd/alibi/predictor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// ErrNoStore is returned by store-backed methods when the runtime has no store.
var ErrNoStore = errors.New("alibi: no explanation store configured")

// Record is a stored explanation.
type Record = storage.Record

// Runtime explains one named model and records what it computes.
// It is safe for concurrent use.
type Runtime struct {
	model     string
	config    ale.Config
	explainer *ale.Explainer
	store     *storage.Store
	metrics   *metrics.Metrics
	wrapper   *metrics.MetricsWrapper
	registry  *prometheus.Registry
	now       func() time.Time

	storePath   string
	compression string
	namespace   string
}

// Option configures a Runtime.
type Option func(*Runtime) error

// WithConfig sets the explainer configuration.
func WithConfig(c ale.Config) Option {
	return func(r *Runtime) error {
		r.config = c
		return nil
	}
}

// WithStore persists explanations under dataPath, compressed with "zstd" or "none".
func WithStore(dataPath, compression string) Option {
	return func(r *Runtime) error {
		if dataPath == "" {
			return fmt.Errorf("store path cannot be empty")
		}
		r.storePath = dataPath
		r.compression = compression
		return nil
	}
}

// WithRegistry registers metrics on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Runtime) error {
		if registry == nil {
			return fmt.Errorf("registry cannot be nil")
		}
		r.registry = registry
		return nil
	}
}

// WithNamespace prefixes metric names with namespace.
func WithNamespace(namespace string) Option {
	return func(r *Runtime) error {
		if namespace == "" {
			return fmt.Errorf("metrics namespace cannot be empty")
		}
		r.namespace = namespace
		return nil
	}
}

// WithClock overrides the clock used to timestamp stored explanations.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) error {
		r.now = now
		return nil
	}
}

// Open builds a runtime explaining p under the given model name.
func Open(model string, p predictor.Predictor, opts ...Option) (*Runtime, error) {
	if model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	r := &Runtime{
		model:       model,
		now:         time.Now,
		compression: common.DefaultStoreCompression,
		namespace:   common.DefaultMetricsNamespace,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}

	r.metrics = metrics.NewWithNamespace(r.registry, r.namespace)
	r.wrapper = metrics.NewWrapper(r.metrics)

	explainer, err := ale.NewExplainerWithMetrics(p, r.config, r.wrapper)
	if err != nil {
		return nil, err
	}
	r.explainer = explainer
	r.config = explainer.Config()

	if r.storePath != "" {
		store, err := storage.New(r.storePath, r.compression)
		if err != nil {
			return nil, fmt.Errorf("open explanation store: %w", err)
		}
		r.store = store
	}

	log.Info().
		Str("model", model).
		Int("resolution", r.config.Resolution).
		Int("workers", r.config.Workers).
		Str("centering", string(r.config.Centering)).
		Bool("store", r.store != nil).
		Msg("ALE runtime ready")
	return r, nil
}

// OpenFromEnv loads settings from ALIBI_CONFIG_FILE or the environment, configures
// logging and opens a runtime. When p is nil the remote predictor URL from the
// settings is used.
func OpenFromEnv(model string, p predictor.Predictor) (*Runtime, error) {
	settings, err := cfg.Load()
	if err != nil {
		return nil, err
	}
	SetupLogging(settings.LogLevel, false)

	if p == nil {
		if settings.PredictorURL == "" {
			return nil, ale.ErrNoPredictor
		}
		p = predictor.NewHTTP(settings.PredictorURL, settings.PredictorHTTPTimeout)
		log.Info().Str("url", settings.PredictorURL).Msg("Using remote predictor")
	}

	opts := []Option{
		WithConfig(settings.ExplainerConfig()),
		WithNamespace(settings.MetricsNamespace),
	}
	if settings.StorePath != "" {
		opts = append(opts, WithStore(settings.StorePath, settings.StoreCompression))
	}
	return Open(model, p, opts...)
}

// Explain computes the explanation of features over X. With a store configured, an
// identical earlier request is answered from the store and new results are saved.
func (r *Runtime) Explain(ctx context.Context, X mat.Matrix, features []int) (*ale.Explanation, error) {
	cacheable := r.store != nil && !ale.IsEmpty(X) && r.cacheable()

	var fingerprint uint64
	if cacheable {
		fingerprint = storage.Fingerprint(r.model, X, r.config, features)
		record, err := r.store.LoadByFingerprint(fingerprint)
		switch {
		case err == nil:
			r.wrapper.CacheHitsInc()
			log.Debug().Str("model", r.model).Str("key", record.Key).Msg("Explanation served from store")
			return record.Explanation, nil
		case !errors.Is(err, storage.ErrNotFound):
			log.Warn().Err(err).Str("model", r.model).Msg("Store lookup failed, recomputing")
		}
	}

	exp, err := r.explainer.Explain(ctx, X, features)
	if err != nil {
		return nil, err
	}

	if cacheable {
		key, err := r.store.Save(r.model, fingerprint, exp, r.now())
		if err != nil {
			log.Warn().Err(err).Str("model", r.model).Msg("Failed to persist explanation")
		} else {
			r.wrapper.StoreWritesInc()
			log.Debug().Str("model", r.model).Str("key", key).Msg("Explanation stored")
		}
	}
	return exp, nil
}

// cacheable reports whether results can be keyed by fingerprint. Custom category
// orders are opaque functions, so requests using them are always recomputed.
func (r *Runtime) cacheable() bool {
	for _, order := range r.config.Categorical {
		if order != nil {
			return false
		}
	}
	return true
}

// Load returns a stored explanation by key.
func (r *Runtime) Load(key string) (Record, error) {
	if r.store == nil {
		return Record{}, ErrNoStore
	}
	return r.store.Load(key)
}

// List returns this model's stored explanations created within [start, end].
func (r *Runtime) List(start, end time.Time) ([]Record, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.List(r.model, start, end)
}

// Config returns the effective explainer configuration.
func (r *Runtime) Config() ale.Config {
	return r.explainer.Config()
}

// Registry returns the registry the runtime's metrics are registered on.
func (r *Runtime) Registry() *prometheus.Registry {
	return r.registry
}

// MetricsHandler serves the runtime's metrics in the Prometheus exposition format.
func (r *Runtime) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Close releases the store.
func (r *Runtime) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
