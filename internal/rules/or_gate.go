package rules

import (
	"sort"

	"github.com/labstreak/labstreak/internal/obs"
)

// MultiChannelOrGate detects rows where any of several channels exceeds a
// multiple of its normal upper limit, gated by a further channel exceeding a
// fixed cutoff at the same (patient, time). The pancreatitis rule uses it:
// any pancreatic enzyme at k times its normal limit, with CRP elevated.
type MultiChannelOrGate struct {
	paramSet
	name         string
	normalLimits map[string]float64 // channel -> upper normal limit, scaled by "multiplier"
	gateChannel  string
	gateCutoff   float64
}

func (r *MultiChannelOrGate) Name() string { return r.name }

func (r *MultiChannelOrGate) Channels() []string {
	out := make([]string, 0, len(r.normalLimits)+1)
	for c := range r.normalLimits {
		out = append(out, c)
	}
	sort.Strings(out)
	return append(out, r.gateChannel)
}

func (r *MultiChannelOrGate) Evaluate(tab obs.Table) Result {
	rows := tab.Channels(r.Channels()...)
	if len(rows) == 0 {
		return Result{}
	}

	var res Result
	pivot, excluded, collapsed := tab.Pivot(r.Channels()...)
	res.Excluded = excluded
	res.Collapsed = collapsed

	k := r.value("multiplier")
	hit := make(map[obs.Key]bool, len(pivot))
	for _, p := range pivot {
		over := false
		for channel, limit := range r.normalLimits {
			if v, ok := p.Values[channel]; ok && v > limit*k {
				over = true
				break
			}
		}
		gate, ok := p.Values[r.gateChannel]
		hit[obs.Key{PatientID: p.PatientID, Time: p.Time}] = over && ok && gate > r.gateCutoff
	}

	res.Rows = make([]Detection, len(rows))
	for i, o := range rows {
		key := obs.Key{PatientID: o.PatientID, Time: o.Time}
		res.Rows[i] = Detection{PatientID: o.PatientID, Time: o.Time, Detected: hit[key]}
	}
	return res
}
