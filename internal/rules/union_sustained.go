package rules

import (
	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/streak"
)

// UnionInstantSustained detects either an instantaneous crossing of a
// constant cutoff or a sustained elevation above the row's own reference
// value. The severe-infection rule uses it: CRP over an absolute limit at
// any single draw, or CRP above the patient reference for consecutive days.
type UnionInstantSustained struct {
	paramSet
	name    string
	channel string
}

func (r *UnionInstantSustained) Name() string       { return r.name }
func (r *UnionInstantSustained) Channels() []string { return []string{r.channel} }

func (r *UnionInstantSustained) Evaluate(tab obs.Table) Result {
	rows := tab.Channels(r.channel)
	if len(rows) == 0 {
		return Result{}
	}

	cutoff := r.value("cutoff")
	var res Result

	instant := make([]bool, len(rows))
	pts := make([]streak.Point, len(rows))
	for i, o := range rows {
		if !o.Valid() {
			res.Excluded++
			pts[i] = streak.Point{PatientID: o.PatientID, Time: o.Time}
			continue
		}
		instant[i] = o.Value > cutoff

		// The sustained leg needs a per-row reference; rows without one
		// only contribute as negatives.
		overRef := false
		if o.Ref != nil {
			overRef = o.Value > *o.Ref
		} else {
			res.Excluded++
		}
		pts[i] = streak.Point{PatientID: o.PatientID, Time: o.Time, Flag: overRef}
	}

	sustained := streak.LongerThan(pts, 24*r.value("days"))

	res.Rows = make([]Detection, len(rows))
	for i, o := range rows {
		res.Rows[i] = Detection{
			PatientID: o.PatientID,
			Time:      o.Time,
			Detected:  instant[i] || sustained[i],
		}
	}
	return res
}
