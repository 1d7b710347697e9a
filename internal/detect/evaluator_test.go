package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labstreak/labstreak/internal/cache"
	"github.com/labstreak/labstreak/internal/metrics"
	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/rules"
)

func day(d int) time.Time {
	return time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func sampleTable() obs.Table {
	var tab obs.Table
	// Patient 1: neutropenic for 12 daily draws.
	for d := 0; d < 12; d++ {
		tab = append(tab, obs.Observation{
			PatientID: 1, Time: day(d), Channel: rules.ChannelNeutrophils, Value: 0.2,
		})
	}
	// Patient 2: one elevated creatinine.
	tab = append(tab, obs.Observation{
		PatientID: 2, Time: day(0), Channel: rules.ChannelCreatinine, Value: 400,
	})
	// Patient 3: unremarkable CRP.
	tab = append(tab, obs.Observation{
		PatientID: 3, Time: day(0), Channel: rules.ChannelCRP, Value: 4,
	})
	return tab
}

func newTestEngine(opts ...Option) *Engine {
	opts = append(opts, WithMetrics(metrics.NewRegistry()))
	return NewEngine(nil, opts...)
}

func TestEvaluateAllRules(t *testing.T) {
	e := newTestEngine()

	results, err := e.Evaluate(context.Background(), sampleTable(), "")
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, []int64{1}, rules.DetectedIDs(results["neutropenia"].Rows))
	assert.Equal(t, []int64{2}, rules.DetectedIDs(results["renal-toxicity"].Rows))
	assert.Empty(t, rules.DetectedIDs(results["severe-infection"].Rows))
	assert.Empty(t, results["pancreatitis"].Rows, "absent channels yield empty detection")
}

func TestEvaluateDeterministic(t *testing.T) {
	e := newTestEngine()
	tab := sampleTable()

	first, err := e.Evaluate(context.Background(), tab, "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Evaluate(context.Background(), tab, "")
		require.NoError(t, err)
		assert.Equal(t, first, again, "worker completion order must not matter")
	}
}

func TestEvaluateCancelled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Evaluate(ctx, sampleTable(), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetRuleParamsChangesDetection(t *testing.T) {
	e := newTestEngine()

	require.NoError(t, e.SetRuleParams("renal-toxicity", map[string]float64{"cutoff": 500}))
	results, err := e.Evaluate(context.Background(), sampleTable(), "")
	require.NoError(t, err)
	assert.Empty(t, rules.DetectedIDs(results["renal-toxicity"].Rows))

	assert.Error(t, e.SetRuleParams("no-such-rule", nil))
}

func TestMemoization(t *testing.T) {
	reg := metrics.NewRegistry()
	e := NewEngine(nil, WithMetrics(reg), WithCache(cache.NewMemory(), time.Hour))
	tab := sampleTable()

	first, err := e.Evaluate(context.Background(), tab, "v1")
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), tab, "v1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A parameter change must key a fresh computation, not reuse the memo.
	require.NoError(t, e.SetRuleParams("renal-toxicity", map[string]float64{"cutoff": 500}))
	third, err := e.Evaluate(context.Background(), tab, "v1")
	require.NoError(t, err)
	assert.Empty(t, rules.DetectedIDs(third["renal-toxicity"].Rows))

	// So must a new input version.
	fourth, err := e.Evaluate(context.Background(), tab, "v2")
	require.NoError(t, err)
	assert.Equal(t, third, fourth)
}

func TestInvalidate(t *testing.T) {
	c := cache.NewMemory()
	e := NewEngine(nil, WithMetrics(metrics.NewRegistry()), WithCache(c, time.Hour))
	tab := sampleTable()

	_, err := e.Evaluate(context.Background(), tab, "v1")
	require.NoError(t, err)

	key := e.memoKey(e.Rules()[0], "v1")
	_, ok := c.Get(key)
	require.True(t, ok)

	e.Invalidate(e.Rules()[0].Name(), "v1")
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestMemoKeyDisabledWithoutVersion(t *testing.T) {
	e := newTestEngine()
	assert.Empty(t, e.memoKey(e.Rules()[0], ""))
}
