package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamSpecClamp(t *testing.T) {
	spec := ParamSpec{Name: "cutoff", Min: 0, Max: 10, Default: 0.5}

	assert.Equal(t, 3.0, spec.Clamp(3))
	assert.Equal(t, 0.0, spec.Clamp(-4))
	assert.Equal(t, 10.0, spec.Clamp(99))
	assert.Equal(t, 0.5, spec.Clamp(math.NaN()))
}

func TestSetParamsClampsAndIgnoresUnknown(t *testing.T) {
	r := NewNeutropenia()

	r.SetParams(map[string]float64{
		"cutoff":  -1,  // below min, clamps to 0
		"days":    500, // above max, clamps to 30
		"bogus":   7,   // not declared, ignored
	})

	td := r.(*ThresholdDuration)
	assert.Equal(t, 0.0, td.value("cutoff"))
	assert.Equal(t, 30.0, td.value("days"))
	_, known := td.spec("bogus")
	assert.False(t, known)
}

func TestBuiltinDefaults(t *testing.T) {
	for _, r := range Builtin() {
		for _, spec := range r.Params() {
			assert.GreaterOrEqual(t, spec.Default, spec.Min, "%s/%s", r.Name(), spec.Name)
			assert.LessOrEqual(t, spec.Default, spec.Max, "%s/%s", r.Name(), spec.Name)
		}
		assert.NotEmpty(t, r.Channels(), r.Name())
	}
}
