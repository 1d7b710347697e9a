// Package detect runs the diagnostic rules over an observation batch and
// reduces their per-row verdicts to patient-level summaries.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labstreak/labstreak/internal/cache"
	"github.com/labstreak/labstreak/internal/metrics"
	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/rules"
)

// Engine evaluates a set of rules over immutable observation batches. Rules
// are independent, so each evaluation pass runs one worker per rule; outputs
// merge by rule name, never positionally, so completion order cannot change
// the result.
//
// Results memoize under an explicit key (rule, parameter fingerprint, input
// version). The input version is caller-controlled: pass a new version when
// the batch changes, or empty to bypass memoization entirely.
type Engine struct {
	mu      sync.Mutex
	rules   []rules.Rule
	applied map[string]map[string]float64

	cache   cache.Cache
	memoTTL time.Duration
	metrics *metrics.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the memoization backend. Without it results always
// recompute.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.memoTTL = ttl
	}
}

// WithMetrics sets the metrics registry; defaults to the process registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over the given rules. With no rules it
// defaults to the built-in set.
func NewEngine(ruleSet []rules.Rule, opts ...Option) *Engine {
	if len(ruleSet) == 0 {
		ruleSet = rules.Builtin()
	}
	e := &Engine{
		rules:   ruleSet,
		applied: make(map[string]map[string]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.Default()
	}
	return e
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []rules.Rule {
	out := make([]rules.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// SetRuleParams applies parameter overrides to the named rule. Values clamp
// to their declared bounds inside the rule; the engine records them so the
// memoization key reflects the active parameter set.
func (e *Engine) SetRuleParams(name string, values map[string]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.Name() != name {
			continue
		}
		r.SetParams(values)
		merged := e.applied[name]
		if merged == nil {
			merged = make(map[string]float64)
			e.applied[name] = merged
		}
		for _, spec := range r.Params() {
			if v, ok := values[spec.Name]; ok {
				merged[spec.Name] = spec.Clamp(v)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown rule %q", name)
}

// ruleOutput pairs one rule's result with its identity for the merge step.
type ruleOutput struct {
	name   string
	result rules.Result
}

// Evaluate runs every rule over the table concurrently and returns results
// keyed by rule name. The pass never fails on data problems: malformed rows
// and duplicate cells degrade single rules and are counted on the metrics
// registry. Only context cancellation aborts.
func (e *Engine) Evaluate(ctx context.Context, tab obs.Table, inputVersion string) (map[string]rules.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs := make([]ruleOutput, len(e.rules))
	var wg sync.WaitGroup
	for i, r := range e.rules {
		wg.Add(1)
		go func(i int, r rules.Rule) {
			defer wg.Done()
			outputs[i] = ruleOutput{name: r.Name(), result: e.evaluateRule(r, tab, inputVersion)}
		}(i, r)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make(map[string]rules.Result, len(outputs))
	for _, out := range outputs {
		results[out.name] = out.result
		e.metrics.DetectedPatients.WithLabelValues(out.name).
			Set(float64(len(rules.DetectedIDs(out.result.Rows))))
	}
	return results, nil
}

func (e *Engine) evaluateRule(r rules.Rule, tab obs.Table, inputVersion string) rules.Result {
	key := e.memoKey(r, inputVersion)
	if key != "" && e.cache != nil {
		if raw, ok := e.cache.Get(key); ok {
			var cached rules.Result
			if err := json.Unmarshal(raw, &cached); err == nil {
				e.metrics.CacheHits.Inc()
				return cached
			}
			// Undecodable entries fall through to recompute.
			e.cache.Delete(key)
		}
		e.metrics.CacheMisses.Inc()
	}

	start := time.Now()
	res := r.Evaluate(tab)
	e.metrics.RuleDuration.WithLabelValues(r.Name()).Observe(time.Since(start).Seconds())
	e.metrics.RowsEvaluated.WithLabelValues(r.Name()).Add(float64(len(res.Rows)))
	if res.Excluded > 0 {
		e.metrics.MalformedExcluded.WithLabelValues(r.Name()).Add(float64(res.Excluded))
		e.metrics.RuleErrors.WithLabelValues(r.Name(), "malformed_value").Add(float64(res.Excluded))
	}
	if res.Collapsed > 0 {
		e.metrics.DuplicatesCollapsed.WithLabelValues(r.Name()).Add(float64(res.Collapsed))
		e.metrics.RuleErrors.WithLabelValues(r.Name(), "duplicate_key").Add(float64(res.Collapsed))
	}

	if key != "" && e.cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			e.cache.Set(key, raw, e.memoTTL)
		} else {
			log.Warn().Err(err).Str("rule", r.Name()).Msg("memoization encode failed")
		}
	}
	return res
}

// Invalidate drops the memoized result of one rule for the given input
// version under its current parameter set.
func (e *Engine) Invalidate(ruleName, inputVersion string) {
	if e.cache == nil {
		return
	}
	for _, r := range e.rules {
		if r.Name() == ruleName {
			if key := e.memoKey(r, inputVersion); key != "" {
				e.cache.Delete(key)
			}
			return
		}
	}
}

// memoKey builds the explicit memoization key. Empty when memoization is
// disabled for this pass.
func (e *Engine) memoKey(r rules.Rule, inputVersion string) string {
	if inputVersion == "" {
		return ""
	}
	e.mu.Lock()
	applied := e.applied[r.Name()]
	specs := r.Params()
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		v := spec.Default
		if ov, ok := applied[spec.Name]; ok {
			v = ov
		}
		parts = append(parts, fmt.Sprintf("%s=%g", spec.Name, v))
	}
	e.mu.Unlock()
	sort.Strings(parts)
	return fmt.Sprintf("detect:%s:%s:%s", r.Name(), strings.Join(parts, ","), inputVersion)
}
