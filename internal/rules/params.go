package rules

import (
	"math"

	"github.com/rs/zerolog/log"
)

// ParamSpec declares one tunable threshold: its bounds, default and display
// unit. Thresholds originate from operator-adjustable controls, so values
// outside [Min, Max] clamp to the nearest bound instead of failing the rule.
type ParamSpec struct {
	Name    string  `json:"name" yaml:"name"`
	Unit    string  `json:"unit" yaml:"unit"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Default float64 `json:"default" yaml:"default"`
}

// Clamp snaps v into the declared range. NaN falls back to the default.
func (p ParamSpec) Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return p.Default
	case v < p.Min:
		return p.Min
	case v > p.Max:
		return p.Max
	}
	return v
}

// paramSet is the shared parameter store embedded by every rule variant.
type paramSet struct {
	specs  []ParamSpec
	values map[string]float64
}

func newParamSet(specs ...ParamSpec) paramSet {
	values := make(map[string]float64, len(specs))
	for _, s := range specs {
		values[s.Name] = s.Default
	}
	return paramSet{specs: specs, values: values}
}

func (p *paramSet) Params() []ParamSpec {
	out := make([]ParamSpec, len(p.specs))
	copy(out, p.specs)
	return out
}

// SetParams applies the recognized entries of values, clamping each to its
// declared range. Unrecognized names are logged and ignored so a stale
// config cannot fail an evaluation pass.
func (p *paramSet) SetParams(values map[string]float64) {
	for name, v := range values {
		spec, ok := p.spec(name)
		if !ok {
			log.Warn().Str("param", name).Msg("unknown rule parameter ignored")
			continue
		}
		clamped := spec.Clamp(v)
		if clamped != v && !math.IsNaN(v) {
			log.Warn().
				Str("param", name).
				Float64("value", v).
				Float64("clamped", clamped).
				Msg("rule parameter out of range, clamped")
		}
		p.values[name] = clamped
	}
}

func (p *paramSet) spec(name string) (ParamSpec, bool) {
	for _, s := range p.specs {
		if s.Name == name {
			return s, true
		}
	}
	return ParamSpec{}, false
}

func (p *paramSet) value(name string) float64 {
	return p.values[name]
}
