package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/persistence"
)

// observationsRepo implements ObservationRepo for PostgreSQL.
type observationsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewObservationsRepo creates a PostgreSQL observations repository.
func NewObservationsRepo(db *sqlx.DB, timeout time.Duration) persistence.ObservationRepo {
	return &observationsRepo{db: db, timeout: timeout}
}

func (r *observationsRepo) InsertBatch(ctx context.Context, batch obs.Table) error {
	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"observations", "patient_id", "sample_time", "channel", "value", "ref_value"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, o := range batch {
		if _, err := stmt.ExecContext(ctx, o.PatientID, o.Time, o.Channel, o.Value, o.Ref); err != nil {
			return fmt.Errorf("copy observation: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	return nil
}

func (r *observationsRepo) List(ctx context.Context, tr persistence.TimeRange, channels ...string) (obs.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT patient_id, sample_time, channel, value, ref_value
		FROM observations
		WHERE ($1::timestamp IS NULL OR sample_time >= $1)
		  AND ($2::timestamp IS NULL OR sample_time <= $2)
		  AND ($3::text[] IS NULL OR channel = ANY($3))
		ORDER BY patient_id, sample_time`

	var chanArg interface{}
	if len(channels) > 0 {
		chanArg = pq.Array(channels)
	}

	rows, err := r.db.QueryxContext(ctx, query, nullTime(tr.From), nullTime(tr.To), chanArg)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func (r *observationsRepo) ListByPatient(ctx context.Context, patientID int64, tr persistence.TimeRange) (obs.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT patient_id, sample_time, channel, value, ref_value
		FROM observations
		WHERE patient_id = $1
		  AND ($2::timestamp IS NULL OR sample_time >= $2)
		  AND ($3::timestamp IS NULL OR sample_time <= $3)
		ORDER BY sample_time`

	rows, err := r.db.QueryxContext(ctx, query, patientID, nullTime(tr.From), nullTime(tr.To))
	if err != nil {
		return nil, fmt.Errorf("list observations for patient %d: %w", patientID, err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows *sqlx.Rows) (obs.Table, error) {
	var tab obs.Table
	for rows.Next() {
		var o obs.Observation
		if err := rows.Scan(&o.PatientID, &o.Time, &o.Channel, &o.Value, &o.Ref); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		tab = append(tab, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return tab, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
