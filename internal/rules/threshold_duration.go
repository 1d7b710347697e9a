package rules

import (
	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/streak"
)

// ThresholdDuration detects a single channel crossing a concentration cutoff
// and keeps only readings inside a run that persists strictly longer than
// the configured duration. This is the shape of the neutropenia and
// thrombocytopenia rules.
type ThresholdDuration struct {
	paramSet
	name          string
	channel       string
	below         bool // abnormal side of the cutoff: value < cutoff when true
	durationParam string
	hoursPerUnit  float64 // 1 for hour-denominated params, 24 for days
}

func (r *ThresholdDuration) Name() string       { return r.name }
func (r *ThresholdDuration) Channels() []string { return []string{r.channel} }

func (r *ThresholdDuration) Evaluate(tab obs.Table) Result {
	rows := tab.Channels(r.channel)
	if len(rows) == 0 {
		return Result{}
	}

	cutoff := r.value("cutoff")
	var res Result
	pts := make([]streak.Point, len(rows))
	for i, o := range rows {
		flag := false
		if !o.Valid() {
			res.Excluded++
		} else if r.below {
			flag = o.Value < cutoff
		} else {
			flag = o.Value > cutoff
		}
		pts[i] = streak.Point{PatientID: o.PatientID, Time: o.Time, Flag: flag}
	}

	hours := r.value(r.durationParam) * r.hoursPerUnit
	qualified := streak.LongerThan(pts, hours)

	res.Rows = make([]Detection, len(rows))
	for i, o := range rows {
		res.Rows[i] = Detection{PatientID: o.PatientID, Time: o.Time, Detected: qualified[i]}
	}
	return res
}
