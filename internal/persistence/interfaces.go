// Package persistence defines the storage contracts for observation batches
// and evaluation runs. The production implementation is PostgreSQL; the
// interfaces keep the engine testable without a database.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/labstreak/labstreak/internal/detect"
	"github.com/labstreak/labstreak/internal/obs"
)

// TimeRange bounds a query window. Zero values mean unbounded on that side.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// EvaluationRun records one full evaluation pass over a batch, so stored
// summaries stay attributable to the exact parameter set that produced them.
type EvaluationRun struct {
	ID           uuid.UUID                     `json:"id" db:"id"`
	InputVersion string                        `json:"input_version" db:"input_version"`
	Params       map[string]map[string]float64 `json:"params"`
	CreatedAt    time.Time                     `json:"created_at" db:"created_at"`
}

// ObservationRepo stores and retrieves lab observations.
type ObservationRepo interface {
	// InsertBatch adds observations atomically.
	InsertBatch(ctx context.Context, batch obs.Table) error

	// List retrieves observations in the time range, optionally restricted
	// to channels, ordered by (patient, time).
	List(ctx context.Context, tr TimeRange, channels ...string) (obs.Table, error)

	// ListByPatient retrieves one patient's observations in the range.
	ListByPatient(ctx context.Context, patientID int64, tr TimeRange) (obs.Table, error)
}

// RunRepo stores evaluation runs and their phenotype summaries.
type RunRepo interface {
	// CreateRun records the run and its per-patient phenotype rows.
	CreateRun(ctx context.Context, run EvaluationRun, summary []detect.PatientPhenotype) error

	// GetSummary retrieves the phenotype table of a run, ordered by patient.
	GetSummary(ctx context.Context, runID uuid.UUID) ([]detect.PatientPhenotype, error)

	// LatestRun returns the most recent run, or nil when none exist.
	LatestRun(ctx context.Context) (*EvaluationRun, error)
}
