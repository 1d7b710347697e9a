package obs

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Observation is one immutable lab measurement: a patient, a collection
// time, the analyte channel code (e.g. NPU02902) and the numeric result.
// Ref carries the per-row reference threshold for rules that compare against
// a floating baseline instead of a constant; it is nil when the source did
// not supply one.
type Observation struct {
	PatientID int64      `json:"patient_id" db:"patient_id"`
	Time      time.Time  `json:"time" db:"sample_time"`
	Channel   string     `json:"channel" db:"channel"`
	Value     float64    `json:"value" db:"value"`
	Ref       *float64   `json:"ref,omitempty" db:"ref_value"`
}

// Valid reports whether the observation carries a usable numeric value.
// NaN marks a malformed source cell; such rows are excluded from detection,
// never propagated as errors.
func (o Observation) Valid() bool {
	return !math.IsNaN(o.Value)
}

// Table is an in-memory batch of observations. All operations return new
// slices; the underlying observations are never mutated.
type Table []Observation

// Channels returns the rows whose channel code is in codes, preserving
// input order.
func (t Table) Channels(codes ...string) Table {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var out Table
	for _, o := range t {
		if want[o.Channel] {
			out = append(out, o)
		}
	}
	return out
}

// Sorted returns a copy ordered by (patient, time). The sort is stable, so
// rows sharing a timestamp keep their input order.
func (t Table) Sorted() Table {
	out := make(Table, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PatientID != out[j].PatientID {
			return out[i].PatientID < out[j].PatientID
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// Patients returns the distinct patient ids in the table, ascending.
func (t Table) Patients() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, o := range t {
		if !seen[o.PatientID] {
			seen[o.PatientID] = true
			ids = append(ids, o.PatientID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Key identifies a pivot cell: one patient at one collection time.
type Key struct {
	PatientID int64
	Time      time.Time
}

// PivotRow is one (patient, time) cell with the values of every channel
// observed at that time. A channel missing from Values means no reading.
type PivotRow struct {
	PatientID int64
	Time      time.Time
	Values    map[string]float64
}

// Pivot reshapes the table into one row per (patient, time) across the given
// channels. Malformed values are excluded and counted. Duplicate
// (patient, time, channel) cells collapse deterministically to the first
// occurrence in input order; each conflict is logged and counted.
func (t Table) Pivot(codes ...string) (rows []PivotRow, excluded, collapsed int) {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}

	index := make(map[Key]*PivotRow)
	var order []Key
	for _, o := range t {
		if len(codes) > 0 && !want[o.Channel] {
			continue
		}
		if !o.Valid() {
			excluded++
			continue
		}
		k := Key{o.PatientID, o.Time}
		r, ok := index[k]
		if !ok {
			r = &PivotRow{PatientID: o.PatientID, Time: o.Time, Values: make(map[string]float64)}
			index[k] = r
			order = append(order, k)
		}
		if _, dup := r.Values[o.Channel]; dup {
			collapsed++
			log.Warn().
				Int64("patient_id", o.PatientID).
				Time("sample_time", o.Time).
				Str("channel", o.Channel).
				Msg("duplicate observation collapsed, first occurrence wins")
			continue
		}
		r.Values[o.Channel] = o.Value
	}

	rows = make([]PivotRow, 0, len(order))
	for _, k := range order {
		rows = append(rows, *index[k])
	}
	return rows, excluded, collapsed
}
