// Package rules holds the diagnostic rule evaluators. Each rule selects the
// lab channels it needs, applies its thresholds (constant or per-row
// reference), optionally defers to the streak engine for temporal
// persistence, and emits one boolean detection per input row.
package rules

import (
	"sort"
	"time"

	"github.com/labstreak/labstreak/internal/obs"
)

// Detection is one per-row verdict, keyed so it can be joined back to the
// source observation.
type Detection struct {
	PatientID int64     `json:"patient_id"`
	Time      time.Time `json:"time"`
	Detected  bool      `json:"detected"`
}

// Result is a rule's full output for one evaluation pass. Excluded counts
// malformed rows treated as non-detected; Collapsed counts duplicate pivot
// cells resolved first-in-order. Both exist so data-quality degradation is
// countable instead of silent.
type Result struct {
	Rows      []Detection `json:"rows"`
	Excluded  int         `json:"excluded"`
	Collapsed int         `json:"collapsed"`
}

// Rule is the common capability set of every diagnostic rule. Evaluate is a
// pure function of the table and the rule's current parameters: no shared
// state, same input same output. A rule whose channels are absent from the
// table returns an empty Result, never an error.
type Rule interface {
	Name() string
	Channels() []string
	Params() []ParamSpec
	SetParams(values map[string]float64)
	Evaluate(tab obs.Table) Result
}

// DetectedIDs reduces per-row detections to the patients with at least one
// positive row, ascending. Pure and order-independent.
func DetectedIDs(rows []Detection) []int64 {
	detected := make(map[int64]bool)
	for _, d := range rows {
		if d.Detected {
			detected[d.PatientID] = true
		}
	}
	ids := make([]int64, 0, len(detected))
	for id := range detected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
