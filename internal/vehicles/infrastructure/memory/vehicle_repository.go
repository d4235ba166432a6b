package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// VehicleRepository is an in-memory vehicles.Repository for tests and
// local development.
type VehicleRepository struct {
	mu       sync.Mutex
	byID     map[string]*vehicles.Vehicle
	byDevice map[string]string

	// FailUpdates makes UpdateSensorState return an error, simulating
	// a store outage.
	FailUpdates bool
}

// NewVehicleRepository constructs an empty repository.
func NewVehicleRepository() *VehicleRepository {
	return &VehicleRepository{
		byID:     make(map[string]*vehicles.Vehicle),
		byDevice: make(map[string]string),
	}
}

// Insert stores a vehicle.
func (r *VehicleRepository) Insert(_ context.Context, vehicle *vehicles.Vehicle) error {
	if vehicle == nil {
		return errors.New("memory repo: nil vehicle")
	}
	if err := vehicle.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byDevice[vehicle.DeviceID]; exists {
		return vehicles.ErrDuplicateDevice
	}
	now := time.Now().UTC()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	clone := cloneVehicle(vehicle)
	r.byID[vehicle.ID] = clone
	r.byDevice[vehicle.DeviceID] = vehicle.ID
	return nil
}

// GetByID returns a copy of the vehicle or (nil, nil).
func (r *VehicleRepository) GetByID(_ context.Context, id string) (*vehicles.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicle, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneVehicle(vehicle), nil
}

// GetByDeviceID returns a copy of the vehicle or (nil, nil).
func (r *VehicleRepository) GetByDeviceID(_ context.Context, deviceID string) (*vehicles.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byDevice[deviceID]
	if !ok {
		return nil, nil
	}
	return cloneVehicle(r.byID[id]), nil
}

// List returns all vehicles ordered by creation time.
func (r *VehicleRepository) List(_ context.Context) ([]vehicles.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]vehicles.Vehicle, 0, len(r.byID))
	for _, vehicle := range r.byID {
		result = append(result, *cloneVehicle(vehicle))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateSensorState replaces snapshot and totals for the device.
func (r *VehicleRepository) UpdateSensorState(_ context.Context, deviceID string, snapshot vehicles.SensorSnapshot, analytics vehicles.UsageAnalytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdates {
		return errors.New("memory repo: update failed")
	}
	id, ok := r.byDevice[deviceID]
	if !ok {
		return vehicles.ErrDeviceNotFound
	}
	vehicle := r.byID[id]
	snap := snapshot
	totals := analytics
	vehicle.Sensor = &snap
	vehicle.Analytics = &totals
	vehicle.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateLastMaintenance refreshes the denormalized maintenance summary.
func (r *VehicleRepository) UpdateLastMaintenance(_ context.Context, vehicleID string, summary vehicles.MaintenanceSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicle, ok := r.byID[vehicleID]
	if !ok {
		return vehicles.ErrVehicleNotFound
	}
	s := summary
	vehicle.LastMaintenance = &s
	vehicle.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneVehicle(v *vehicles.Vehicle) *vehicles.Vehicle {
	clone := *v
	if v.Sensor != nil {
		snap := *v.Sensor
		clone.Sensor = &snap
	}
	if v.Analytics != nil {
		totals := *v.Analytics
		clone.Analytics = &totals
	}
	if v.LastMaintenance != nil {
		summary := *v.LastMaintenance
		clone.LastMaintenance = &summary
	}
	return &clone
}
