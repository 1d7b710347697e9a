package rules

import (
	"github.com/labstreak/labstreak/internal/obs"
)

// InstantThreshold flags any single reading beyond a constant cutoff, with
// no temporal component. The renal-toxicity rule is the one built-in user.
type InstantThreshold struct {
	paramSet
	name    string
	channel string
	below   bool
}

func (r *InstantThreshold) Name() string       { return r.name }
func (r *InstantThreshold) Channels() []string { return []string{r.channel} }

func (r *InstantThreshold) Evaluate(tab obs.Table) Result {
	rows := tab.Channels(r.channel)
	if len(rows) == 0 {
		return Result{}
	}

	cutoff := r.value("cutoff")
	var res Result
	res.Rows = make([]Detection, len(rows))
	for i, o := range rows {
		detected := false
		if !o.Valid() {
			res.Excluded++
		} else if r.below {
			detected = o.Value < cutoff
		} else {
			detected = o.Value > cutoff
		}
		res.Rows[i] = Detection{PatientID: o.PatientID, Time: o.Time, Detected: detected}
	}
	return res
}
