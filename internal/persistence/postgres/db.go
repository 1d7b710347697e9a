// Package postgres implements the persistence contracts on PostgreSQL via
// sqlx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	id          BIGSERIAL PRIMARY KEY,
	patient_id  BIGINT      NOT NULL,
	sample_time TIMESTAMP   NOT NULL,
	channel     TEXT        NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	ref_value   DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_observations_patient_time
	ON observations (patient_id, sample_time);
CREATE INDEX IF NOT EXISTS idx_observations_channel
	ON observations (channel);

CREATE TABLE IF NOT EXISTS evaluation_runs (
	id            UUID PRIMARY KEY,
	input_version TEXT NOT NULL,
	params        JSONB NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phenotypes (
	run_id     UUID   NOT NULL REFERENCES evaluation_runs (id) ON DELETE CASCADE,
	patient_id BIGINT NOT NULL,
	phenotype  SMALLINT NOT NULL,
	PRIMARY KEY (run_id, patient_id)
);
`

// Connect opens and pings a PostgreSQL connection.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
