package rules

import (
	"github.com/labstreak/labstreak/internal/obs"
)

// MultiChannelAnd detects rows where a lead channel crosses its cutoff at
// the same (patient, time) as a supporting condition on two other channels.
// Sub-detections meet in an outer join on the pivot key; a missing reading
// on either side coalesces to false rather than failing the row. This is
// the hepatic-toxicity shape: elevated liver enzyme together with depressed
// coagulation factor or elevated bilirubin.
type MultiChannelAnd struct {
	paramSet
	name        string
	leadChannel string // cutoff param "lead_cutoff", abnormal above
	lowChannel  string // cutoff param "low_cutoff", abnormal below
	highChannel string // cutoff param "high_cutoff", abnormal above
}

func (r *MultiChannelAnd) Name() string { return r.name }

func (r *MultiChannelAnd) Channels() []string {
	return []string{r.leadChannel, r.lowChannel, r.highChannel}
}

func (r *MultiChannelAnd) Evaluate(tab obs.Table) Result {
	rows := tab.Channels(r.Channels()...)
	if len(rows) == 0 {
		return Result{}
	}

	var res Result

	lead, excluded, collapsed := tab.Pivot(r.leadChannel)
	res.Excluded += excluded
	res.Collapsed += collapsed
	leadHit := make(map[obs.Key]bool, len(lead))
	for _, p := range lead {
		if v, ok := p.Values[r.leadChannel]; ok {
			leadHit[obs.Key{PatientID: p.PatientID, Time: p.Time}] = v > r.value("lead_cutoff")
		}
	}

	support, excluded, collapsed := tab.Pivot(r.lowChannel, r.highChannel)
	res.Excluded += excluded
	res.Collapsed += collapsed
	supportHit := make(map[obs.Key]bool, len(support))
	for _, p := range support {
		hit := false
		if v, ok := p.Values[r.lowChannel]; ok && v < r.value("low_cutoff") {
			hit = true
		}
		if v, ok := p.Values[r.highChannel]; ok && v > r.value("high_cutoff") {
			hit = true
		}
		supportHit[obs.Key{PatientID: p.PatientID, Time: p.Time}] = hit
	}

	// Outer join: a key present on one side only reads false on the other.
	res.Rows = make([]Detection, len(rows))
	for i, o := range rows {
		k := obs.Key{PatientID: o.PatientID, Time: o.Time}
		res.Rows[i] = Detection{
			PatientID: o.PatientID,
			Time:      o.Time,
			Detected:  leadHit[k] && supportHit[k],
		}
	}
	return res
}
