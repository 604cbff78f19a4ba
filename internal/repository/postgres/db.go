package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/medreminder/config"
)

func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Schema creates the tables this service owns when they are missing.
const Schema = `
CREATE TABLE IF NOT EXISTS reminders (
	id                     UUID PRIMARY KEY,
	patient_id             TEXT NOT NULL,
	title                  TEXT NOT NULL,
	medicine_name          TEXT NOT NULL DEFAULT '',
	dosage                 TEXT NOT NULL DEFAULT '',
	times                  JSONB NOT NULL DEFAULT '[]',
	repeat                 JSONB NOT NULL DEFAULT '"daily"',
	total_days             INTEGER,
	enabled                BOOLEAN NOT NULL DEFAULT TRUE,
	status                 TEXT NOT NULL DEFAULT 'upcoming',
	linked_prescription_id TEXT,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reminders_patient_idx ON reminders (patient_id);

CREATE TABLE IF NOT EXISTS prescriptions (
	id         UUID PRIMARY KEY,
	patient_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	dose       TEXT NOT NULL DEFAULT '',
	schedule   JSONB NOT NULL,
	start_date TEXT NOT NULL DEFAULT '',
	end_date   TEXT,
	enabled    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS prescriptions_patient_idx ON prescriptions (patient_id);

CREATE TABLE IF NOT EXISTS notification_preferences (
	patient_id   TEXT PRIMARY KEY,
	push_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	email        TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL
);
`

func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
