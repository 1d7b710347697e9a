package streak

import (
	"sort"
	"time"
)

// Point is one row of a boolean detection signal for a single patient.
// A slice of Points is the unit the streak engine operates on; slice order
// is the caller's row identity and is always preserved in outputs.
type Point struct {
	PatientID int64
	Time      time.Time
	Flag      bool
}

// Streak is a maximal run of consecutive equal-flag points for one patient,
// ordered by time. Ordinals are 1-based and local to the patient; they are
// never globally unique.
type Streak struct {
	PatientID     int64
	Ordinal       int
	Flag          bool
	Start         time.Time
	End           time.Time
	DurationHours float64
}

// ComputeIDs assigns a streak id to every point. Within each patient the
// points are ordered by time (stable, so equal timestamps keep input order),
// the first point always opens streak 1, and the id increments whenever the
// flag differs from the previous point of the same patient. The returned
// slice is aligned with pts, not with the sorted order.
func ComputeIDs(pts []Point) []int {
	order := sortedOrder(pts)

	ids := make([]int, len(pts))
	var prev *Point
	id := 0
	for _, i := range order {
		p := &pts[i]
		if prev == nil || prev.PatientID != p.PatientID {
			id = 1
		} else if prev.Flag != p.Flag {
			id++
		}
		ids[i] = id
		prev = p
	}
	return ids
}

// Streaks groups the points of each patient into their streaks. Durations
// are end minus start in hours; a single-point streak has duration 0.
func Streaks(pts []Point) []Streak {
	ids := ComputeIDs(pts)

	type key struct {
		patient int64
		ordinal int
	}
	byKey := make(map[key]*Streak)
	var out []*Streak
	for i, p := range pts {
		k := key{p.PatientID, ids[i]}
		s, ok := byKey[k]
		if !ok {
			s = &Streak{
				PatientID: p.PatientID,
				Ordinal:   ids[i],
				Flag:      p.Flag,
				Start:     p.Time,
				End:       p.Time,
			}
			byKey[k] = s
			out = append(out, s)
			continue
		}
		if p.Time.Before(s.Start) {
			s.Start = p.Time
		}
		if p.Time.After(s.End) {
			s.End = p.Time
		}
	}

	res := make([]Streak, len(out))
	for i, s := range out {
		s.DurationHours = s.End.Sub(s.Start).Hours()
		res[i] = *s
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].PatientID != res[j].PatientID {
			return res[i].PatientID < res[j].PatientID
		}
		return res[i].Ordinal < res[j].Ordinal
	})
	return res
}

// LongerThan reports, per point, whether the point belongs to a positive
// streak spanning strictly more than thresholdHours. The comparison is
// exclusive: a streak whose duration equals the threshold does not qualify,
// and a single isolated positive reading (duration 0) never qualifies for a
// non-negative threshold. Negative streaks never qualify regardless of
// length. Output is aligned with pts.
func LongerThan(pts []Point, thresholdHours float64) []bool {
	ids := ComputeIDs(pts)

	type key struct {
		patient int64
		ordinal int
	}
	type span struct {
		start, end time.Time
		flag       bool
	}
	spans := make(map[key]*span)
	for i, p := range pts {
		k := key{p.PatientID, ids[i]}
		s, ok := spans[k]
		if !ok {
			spans[k] = &span{start: p.Time, end: p.Time, flag: p.Flag}
			continue
		}
		if p.Time.Before(s.start) {
			s.start = p.Time
		}
		if p.Time.After(s.end) {
			s.end = p.Time
		}
	}

	out := make([]bool, len(pts))
	for i, p := range pts {
		s := spans[key{p.PatientID, ids[i]}]
		out[i] = s.flag && s.end.Sub(s.start).Hours() > thresholdHours
	}
	return out
}

// sortedOrder returns the indices of pts ordered by (patient, time) with a
// stable sort, so duplicate timestamps resolve to input order within a run.
func sortedOrder(pts []Point) []int {
	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := pts[order[a]], pts[order[b]]
		if pa.PatientID != pb.PatientID {
			return pa.PatientID < pb.PatientID
		}
		return pa.Time.Before(pb.Time)
	})
	return order
}
