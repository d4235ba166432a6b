package application

import (
	"context"
	"errors"
	"log"
	"time"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// RegisterInput is the validated payload for vehicle registration.
type RegisterInput struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     int    `json:"year"`
	DeviceID string `json:"deviceId"`
}

// Service implements vehicle registration, lookup and sensor-state
// merging on top of the repository.
type Service struct {
	repo   vehicles.Repository
	logger *log.Logger
}

// NewService constructs a service.
func NewService(repo vehicles.Repository, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("vehicle service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Register creates a vehicle with empty sensor state.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*vehicles.Vehicle, error) {
	vehicle, err := vehicles.NewVehicle(input.Make, input.Model, input.Year, input.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, vehicle); err != nil {
		return nil, err
	}
	s.logger.Printf("vehicle registered: id=%s device=%s", vehicle.ID, vehicle.DeviceID)
	return vehicle, nil
}

// Get loads a vehicle by id.
func (s *Service) Get(ctx context.Context, id string) (*vehicles.Vehicle, error) {
	vehicle, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, vehicles.ErrVehicleNotFound
	}
	return vehicle, nil
}

// List returns all registered vehicles.
func (s *Service) List(ctx context.Context) ([]vehicles.Vehicle, error) {
	return s.repo.List(ctx)
}

// ApplyReading merges a new sensor reading into the vehicle keyed by
// deviceID: it accumulates usage against the previous snapshot and
// persists snapshot plus totals as one row update. The returned
// snapshot is the post-merge authoritative value for fan-out.
//
// An unknown device yields ErrDeviceNotFound; a first reading for an
// existing vehicle accumulates against zero baselines.
func (s *Service) ApplyReading(ctx context.Context, deviceID string, reading vehicles.SensorSnapshot) (vehicles.SensorSnapshot, vehicles.UsageAnalytics, error) {
	vehicle, err := s.repo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return vehicles.SensorSnapshot{}, vehicles.UsageAnalytics{}, err
	}
	if vehicle == nil {
		return vehicles.SensorSnapshot{}, vehicles.UsageAnalytics{}, vehicles.ErrDeviceNotFound
	}

	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = time.Now().UTC()
	}
	analytics := vehicles.ComputeUsage(vehicle.Sensor, vehicle.Analytics, reading)

	if err := s.repo.UpdateSensorState(ctx, deviceID, reading, analytics); err != nil {
		return vehicles.SensorSnapshot{}, vehicles.UsageAnalytics{}, err
	}
	return reading, analytics, nil
}
