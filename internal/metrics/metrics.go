package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds the Prometheus metrics for the evaluation pipeline.
type Registry struct {
	// Per-rule evaluation timing and outcomes
	RuleDuration  *prometheus.HistogramVec
	RuleErrors    *prometheus.CounterVec
	RowsEvaluated *prometheus.CounterVec

	// Data-quality degradations (countable, never fatal)
	MalformedExcluded   *prometheus.CounterVec
	DuplicatesCollapsed *prometheus.CounterVec

	// Memoization
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Aggregation
	DetectedPatients *prometheus.GaugeVec
}

// NewRegistry creates the full metric set, unregistered.
func NewRegistry() *Registry {
	return &Registry{
		RuleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labstreak_rule_duration_seconds",
				Help:    "Duration of one rule evaluation pass",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"rule"},
		),
		RuleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labstreak_rule_errors_total",
				Help: "Rule evaluations that degraded instead of completing cleanly",
			},
			[]string{"rule", "kind"},
		),
		RowsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labstreak_rows_evaluated_total",
				Help: "Observation rows a rule produced a verdict for",
			},
			[]string{"rule"},
		),
		MalformedExcluded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labstreak_malformed_rows_excluded_total",
				Help: "Rows excluded from detection because of malformed values",
			},
			[]string{"rule"},
		),
		DuplicatesCollapsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labstreak_duplicate_cells_collapsed_total",
				Help: "Duplicate pivot cells collapsed first-in-order",
			},
			[]string{"rule"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "labstreak_memo_cache_hits_total",
				Help: "Rule results served from the memoization cache",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "labstreak_memo_cache_misses_total",
				Help: "Rule results recomputed after a memoization miss",
			},
		),
		DetectedPatients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "labstreak_detected_patients",
				Help: "Patients with at least one positive detection, per rule",
			},
			[]string{"rule"},
		),
	}
}

// Register registers every metric with the given registerer.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.RuleDuration, r.RuleErrors, r.RowsEvaluated,
		r.MalformedExcluded, r.DuplicatesCollapsed,
		r.CacheHits, r.CacheMisses, r.DetectedPatients,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// Default returns the process-wide registry, registered with the default
// Prometheus registerer on first use.
func Default() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
		if err := defaultRegistry.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn().Err(err).Msg("metrics registration failed")
		}
	})
	return defaultRegistry
}
