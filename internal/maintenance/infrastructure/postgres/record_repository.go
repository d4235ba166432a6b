package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	maintenance "fleet-telemetry-cloud/internal/maintenance/domain"
)

const defaultRecordsTable = "maintenance_records"

// DBTX is the subset of *sql.DB / *sql.Tx the repository needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RecordRepository is a Postgres implementation of maintenance.Repository.
type RecordRepository struct {
	db    DBTX
	table string
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db DBTX, opts ...RecordOption) *RecordRepository {
	repo := &RecordRepository{db: db, table: defaultRecordsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RecordOption configures the repository.
type RecordOption func(*RecordRepository)

// WithRecordsTable overrides the default table name.
func WithRecordsTable(table string) RecordOption {
	return func(repo *RecordRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert stores a record.
func (r *RecordRepository) Insert(ctx context.Context, record *maintenance.Record) error {
	if r == nil || r.db == nil {
		return errors.New("maintenance repo: nil db")
	}
	if record == nil {
		return errors.New("maintenance repo: nil record")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, vehicle_id, date, description, cost)
VALUES ($1, $2, $3, $4, $5)`, r.table)

	if _, err := r.db.ExecContext(ctx, query, record.ID, record.VehicleID, record.Date.UTC(), record.Description, record.Cost); err != nil {
		return err
	}
	record.CreatedAt = time.Now().UTC()
	return nil
}

// ListByVehicle returns all records for a vehicle, oldest first.
func (r *RecordRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]maintenance.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	if vehicleID == "" {
		return nil, errors.New("maintenance repo: empty vehicle id")
	}

	query := fmt.Sprintf(`
SELECT id, vehicle_id, date, description, cost, created_at
FROM %s
WHERE vehicle_id = $1
ORDER BY date, created_at`, r.table)

	rows, err := r.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []maintenance.Record
	for rows.Next() {
		var record maintenance.Record
		if err := rows.Scan(&record.ID, &record.VehicleID, &record.Date, &record.Description, &record.Cost, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.Date = record.Date.UTC()
		record.CreatedAt = record.CreatedAt.UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}
