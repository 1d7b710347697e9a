package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/labstreak/labstreak/internal/detect"
	"github.com/labstreak/labstreak/internal/persistence"
)

// runsRepo implements RunRepo for PostgreSQL.
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a PostgreSQL evaluation-run repository.
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunRepo {
	return &runsRepo{db: db, timeout: timeout}
}

func (r *runsRepo) CreateRun(ctx context.Context, run persistence.EvaluationRun, summary []detect.PatientPhenotype) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluation_runs (id, input_version, params, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))`,
		run.ID, run.InputVersion, paramsJSON, nullTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range summary {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_phenotypes (run_id, patient_id, phenotype)
			VALUES ($1, $2, $3)`,
			run.ID, p.PatientID, p.Phenotype)
		if err != nil {
			return fmt.Errorf("insert phenotype for patient %d: %w", p.PatientID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (r *runsRepo) GetSummary(ctx context.Context, runID uuid.UUID) ([]detect.PatientPhenotype, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT patient_id, phenotype
		FROM run_phenotypes
		WHERE run_id = $1
		ORDER BY patient_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list phenotypes: %w", err)
	}
	defer rows.Close()

	var out []detect.PatientPhenotype
	for rows.Next() {
		var p detect.PatientPhenotype
		if err := rows.Scan(&p.PatientID, &p.Phenotype); err != nil {
			return nil, fmt.Errorf("scan phenotype: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *runsRepo) LatestRun(ctx context.Context) (*persistence.EvaluationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		run        persistence.EvaluationRun
		paramsJSON []byte
	)
	err := r.db.QueryRowxContext(ctx, `
		SELECT id, input_version, params, created_at
		FROM evaluation_runs
		ORDER BY created_at DESC
		LIMIT 1`).Scan(&run.ID, &run.InputVersion, &paramsJSON, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
		return nil, fmt.Errorf("unmarshal run params: %w", err)
	}
	return &run, nil
}
