package detect

import (
	"sort"

	"github.com/labstreak/labstreak/internal/rules"
)

// PatientPhenotype is one row of the cross-rule summary: 1 when the patient
// has at least one positive detection under any rule, 0 otherwise.
type PatientPhenotype struct {
	PatientID int64 `json:"patient_id"`
	Phenotype int   `json:"phenotype"`
}

// Summarize unions detections across rules into the per-patient phenotype
// table. Every patient that appears in any rule's output gets a row, sorted
// by patient id. Pure and idempotent; input map order cannot matter because
// the reduction is a commutative OR keyed by patient.
func Summarize(results map[string]rules.Result) []PatientPhenotype {
	phenotype := make(map[int64]int)
	for _, res := range results {
		for _, d := range res.Rows {
			if d.Detected {
				phenotype[d.PatientID] = 1
			} else if _, seen := phenotype[d.PatientID]; !seen {
				phenotype[d.PatientID] = 0
			}
		}
	}

	out := make([]PatientPhenotype, 0, len(phenotype))
	for id, p := range phenotype {
		out = append(out, PatientPhenotype{PatientID: id, Phenotype: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}

// DetectedByRule maps each rule to its detected patient ids.
func DetectedByRule(results map[string]rules.Result) map[string][]int64 {
	out := make(map[string][]int64, len(results))
	for name, res := range results {
		out[name] = rules.DetectedIDs(res.Rows)
	}
	return out
}
