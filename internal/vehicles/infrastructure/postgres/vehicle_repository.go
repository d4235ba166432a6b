package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

const defaultVehiclesTable = "vehicles"

// DBTX is the subset of *sql.DB / *sql.Tx the repositories need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// VehicleRepository is a Postgres implementation of vehicles.Repository.
type VehicleRepository struct {
	db    DBTX
	table string
}

// NewVehicleRepository constructs a repository.
func NewVehicleRepository(db DBTX, opts ...VehicleOption) *VehicleRepository {
	repo := &VehicleRepository{db: db, table: defaultVehiclesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// VehicleOption configures the repository.
type VehicleOption func(*VehicleRepository)

// WithVehiclesTable overrides the default table name.
func WithVehiclesTable(table string) VehicleOption {
	return func(repo *VehicleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const vehicleColumns = `
id, make, model, year, device_id,
odometer_reading, engine_hours, fuel_level, latitude, longitude, observed_at,
distance_traveled, hours_operated,
last_maintenance_date, last_maintenance_description, last_maintenance_cost,
created_at, updated_at`

// Insert stores a newly registered vehicle.
func (r *VehicleRepository) Insert(ctx context.Context, vehicle *vehicles.Vehicle) error {
	if r == nil || r.db == nil {
		return errors.New("vehicle repo: nil db")
	}
	if vehicle == nil {
		return errors.New("vehicle repo: nil vehicle")
	}
	if err := vehicle.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, make, model, year, device_id)
VALUES ($1, $2, $3, $4, $5)`, r.table)

	_, err := r.db.ExecContext(ctx, query, vehicle.ID, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.DeviceID)
	if err != nil {
		if isUniqueViolation(err) {
			return vehicles.ErrDuplicateDevice
		}
		return err
	}
	now := time.Now().UTC()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	return nil
}

// GetByID loads a vehicle by its id. Returns (nil, nil) when absent.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*vehicles.Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("vehicle repo: nil db")
	}
	if id == "" {
		return nil, errors.New("vehicle repo: empty id")
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 LIMIT 1", vehicleColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByDeviceID loads a vehicle by its device identifier. Returns
// (nil, nil) when absent.
func (r *VehicleRepository) GetByDeviceID(ctx context.Context, deviceID string) (*vehicles.Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("vehicle repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("vehicle repo: empty device id")
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE device_id = $1 LIMIT 1", vehicleColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, deviceID))
}

// List returns all registered vehicles ordered by creation time.
func (r *VehicleRepository) List(ctx context.Context) ([]vehicles.Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("vehicle repo: nil db")
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at, id", vehicleColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []vehicles.Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *vehicle)
	}
	return result, rows.Err()
}

// UpdateSensorState replaces the snapshot and running totals of the
// vehicle keyed by deviceID in a single row update.
func (r *VehicleRepository) UpdateSensorState(ctx context.Context, deviceID string, snapshot vehicles.SensorSnapshot, analytics vehicles.UsageAnalytics) error {
	if r == nil || r.db == nil {
		return errors.New("vehicle repo: nil db")
	}
	if deviceID == "" {
		return errors.New("vehicle repo: empty device id")
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	odometer_reading = $2,
	engine_hours = $3,
	fuel_level = $4,
	latitude = $5,
	longitude = $6,
	observed_at = $7,
	distance_traveled = $8,
	hours_operated = $9,
	updated_at = NOW()
WHERE device_id = $1`, r.table)

	result, err := r.db.ExecContext(
		ctx,
		query,
		deviceID,
		snapshot.OdometerReading,
		snapshot.EngineHours,
		snapshot.FuelLevel,
		snapshot.LastLocation.Latitude,
		snapshot.LastLocation.Longitude,
		snapshot.ObservedAt.UTC(),
		analytics.DistanceTraveled,
		analytics.HoursOperated,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return vehicles.ErrDeviceNotFound
	}
	return nil
}

// UpdateLastMaintenance refreshes the denormalized last-maintenance
// columns on the vehicle row.
func (r *VehicleRepository) UpdateLastMaintenance(ctx context.Context, vehicleID string, summary vehicles.MaintenanceSummary) error {
	if r == nil || r.db == nil {
		return errors.New("vehicle repo: nil db")
	}
	if vehicleID == "" {
		return errors.New("vehicle repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	last_maintenance_date = $2,
	last_maintenance_description = $3,
	last_maintenance_cost = $4,
	updated_at = NOW()
WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query, vehicleID, summary.Date.UTC(), summary.Description, summary.Cost)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return vehicles.ErrVehicleNotFound
	}
	return nil
}

func (r *VehicleRepository) scanOne(row *sql.Row) (*vehicles.Vehicle, error) {
	vehicle, err := scanVehicle(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func scanVehicle(scan func(...any) error) (*vehicles.Vehicle, error) {
	var (
		vehicle vehicles.Vehicle

		odometer  sql.NullFloat64
		hours     sql.NullFloat64
		fuel      sql.NullString
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
		observed  sql.NullTime

		distance sql.NullFloat64
		operated sql.NullFloat64

		maintDate sql.NullTime
		maintDesc sql.NullString
		maintCost sql.NullFloat64
	)

	if err := scan(
		&vehicle.ID,
		&vehicle.Make,
		&vehicle.Model,
		&vehicle.Year,
		&vehicle.DeviceID,
		&odometer,
		&hours,
		&fuel,
		&latitude,
		&longitude,
		&observed,
		&distance,
		&operated,
		&maintDate,
		&maintDesc,
		&maintCost,
		&vehicle.CreatedAt,
		&vehicle.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if observed.Valid {
		vehicle.Sensor = &vehicles.SensorSnapshot{
			OdometerReading: odometer.Float64,
			EngineHours:     hours.Float64,
			FuelLevel:       fuel.String,
			LastLocation: vehicles.GeoPoint{
				Latitude:  latitude.Float64,
				Longitude: longitude.Float64,
			},
			ObservedAt: observed.Time.UTC(),
		}
	}
	if distance.Valid || operated.Valid {
		vehicle.Analytics = &vehicles.UsageAnalytics{
			DistanceTraveled: distance.Float64,
			HoursOperated:    operated.Float64,
		}
	}
	if maintDate.Valid {
		vehicle.LastMaintenance = &vehicles.MaintenanceSummary{
			Date:        maintDate.Time.UTC(),
			Description: maintDesc.String,
			Cost:        maintCost.Float64,
		}
	}
	vehicle.CreatedAt = vehicle.CreatedAt.UTC()
	vehicle.UpdatedAt = vehicle.UpdatedAt.UTC()
	return &vehicle, nil
}

func isUniqueViolation(err error) bool {
	// pgx wraps server errors; SQLSTATE 23505 is unique_violation.
	return err != nil && strings.Contains(err.Error(), "23505")
}
