package vehicles

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// GeoPoint is a GPS coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SensorSnapshot is the latest-known aggregated reading reported by a
// vehicle's device. It supersedes the previous snapshot wholesale; no
// history is kept.
type SensorSnapshot struct {
	OdometerReading float64   `json:"odometerReading"`
	EngineHours     float64   `json:"engineHours"`
	FuelLevel       string    `json:"fuelLevel"`
	LastLocation    GeoPoint  `json:"lastLocation"`
	ObservedAt      time.Time `json:"observedAt"`
}

// UsageAnalytics holds durable running totals derived from sequential
// snapshot deltas. Totals never decrease over the lifetime of a vehicle.
type UsageAnalytics struct {
	DistanceTraveled float64 `json:"distanceTraveled"`
	HoursOperated    float64 `json:"hoursOperated"`
}

// MaintenanceSummary is the denormalized copy of the most recent
// maintenance record kept on the vehicle row.
type MaintenanceSummary struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Cost        float64   `json:"cost"`
}

// Vehicle is the durable aggregate root. Sensor and Analytics are nil
// until the first reading for the device arrives.
type Vehicle struct {
	ID              string              `json:"id"`
	Make            string              `json:"make"`
	Model           string              `json:"model"`
	Year            int                 `json:"year"`
	DeviceID        string              `json:"deviceId"`
	Sensor          *SensorSnapshot     `json:"aggregatedSensorData"`
	Analytics       *UsageAnalytics     `json:"usageAnalytics"`
	LastMaintenance *MaintenanceSummary `json:"lastMaintenanceRecord"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// NewVehicle validates registration input and builds a vehicle with a
// fresh id and empty sensor state.
func NewVehicle(make, model string, year int, deviceID string) (*Vehicle, error) {
	v := &Vehicle{
		ID:       NewVehicleID(),
		Make:     make,
		Model:    model,
		Year:     year,
		DeviceID: deviceID,
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks registration constraints.
func (v *Vehicle) Validate() error {
	if v == nil {
		return errors.New("vehicles: nil vehicle")
	}
	if l := len(v.Make); l < 2 || l > 50 {
		return fmt.Errorf("vehicles: %w: make must be 2-50 characters", ErrInvalidVehicle)
	}
	if l := len(v.Model); l < 2 || l > 50 {
		return fmt.Errorf("vehicles: %w: model must be 2-50 characters", ErrInvalidVehicle)
	}
	if currentYear := time.Now().UTC().Year(); v.Year < 1900 || v.Year > currentYear {
		return fmt.Errorf("vehicles: %w: year must be between 1900 and %d", ErrInvalidVehicle, currentYear)
	}
	if l := len(v.DeviceID); l < 5 || l > 50 {
		return fmt.Errorf("vehicles: %w: deviceId must be 5-50 characters", ErrInvalidVehicle)
	}
	return nil
}

// NewVehicleID generates a random vehicle identifier.
func NewVehicleID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString(buf[:])
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return hex.EncodeToString(buf[:])
}

// Repository persists vehicles. Lookups return (nil, nil) when no row
// matches; callers translate that into the not-found errors they need.
type Repository interface {
	Insert(ctx context.Context, vehicle *Vehicle) error
	GetByID(ctx context.Context, id string) (*Vehicle, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Vehicle, error)
	List(ctx context.Context) ([]Vehicle, error)
	// UpdateSensorState replaces the snapshot and analytics of the
	// vehicle keyed by deviceID as a single row update.
	UpdateSensorState(ctx context.Context, deviceID string, snapshot SensorSnapshot, analytics UsageAnalytics) error
	UpdateLastMaintenance(ctx context.Context, vehicleID string, summary MaintenanceSummary) error
}
