package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres and verifies connectivity.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("db: database url required")
	}
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return conn, nil
}

// EnsureSchema creates tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	schema := `
CREATE TABLE IF NOT EXISTS vehicles (
	id TEXT PRIMARY KEY,
	make TEXT NOT NULL,
	model TEXT NOT NULL,
	year INT NOT NULL,
	device_id TEXT UNIQUE NOT NULL,
	odometer_reading DOUBLE PRECISION,
	engine_hours DOUBLE PRECISION,
	fuel_level TEXT,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	observed_at TIMESTAMPTZ,
	distance_traveled DOUBLE PRECISION,
	hours_operated DOUBLE PRECISION,
	last_maintenance_date TIMESTAMPTZ,
	last_maintenance_description TEXT,
	last_maintenance_cost DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vehicles_device_id ON vehicles(device_id);

CREATE TABLE IF NOT EXISTS maintenance_records (
	id TEXT PRIMARY KEY,
	vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
	date TIMESTAMPTZ NOT NULL,
	description TEXT NOT NULL,
	cost DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_maintenance_vehicle_id ON maintenance_records(vehicle_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT,
	metadata JSONB,
	payload_digest TEXT,
	ip TEXT,
	user_agent TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db: ensure schema: %w", err)
	}
	return nil
}
