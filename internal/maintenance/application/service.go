package application

import (
	"context"
	"errors"
	"log"
	"time"

	maintenance "fleet-telemetry-cloud/internal/maintenance/domain"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// RecordInput is the payload for adding a maintenance record.
type RecordInput struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Cost        float64   `json:"cost"`
}

// Service appends maintenance records and keeps the vehicle's
// last-maintenance summary in sync.
type Service struct {
	records  maintenance.Repository
	vehicles vehicles.Repository
	logger   *log.Logger
}

// NewService constructs a service.
func NewService(records maintenance.Repository, vehicleRepo vehicles.Repository, logger *log.Logger) (*Service, error) {
	if records == nil {
		return nil, errors.New("maintenance service: nil record repository")
	}
	if vehicleRepo == nil {
		return nil, errors.New("maintenance service: nil vehicle repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{records: records, vehicles: vehicleRepo, logger: logger}, nil
}

// Add validates and stores a record for an existing vehicle, then
// updates the vehicle's last-maintenance summary. The summary update
// is best effort; the record is the source of truth.
func (s *Service) Add(ctx context.Context, vehicleID string, input RecordInput) (*maintenance.Record, error) {
	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, vehicles.ErrVehicleNotFound
	}

	record, err := maintenance.NewRecord(vehicleID, input.Date, input.Description, input.Cost)
	if err != nil {
		return nil, err
	}
	if err := s.records.Insert(ctx, record); err != nil {
		return nil, err
	}

	summary := vehicles.MaintenanceSummary{
		Date:        record.Date,
		Description: record.Description,
		Cost:        record.Cost,
	}
	if err := s.vehicles.UpdateLastMaintenance(ctx, vehicleID, summary); err != nil {
		s.logger.Printf("maintenance service: update last maintenance for vehicle %s: %v", vehicleID, err)
	}
	return record, nil
}

// List returns the maintenance history of an existing vehicle.
func (s *Service) List(ctx context.Context, vehicleID string) ([]maintenance.Record, error) {
	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, vehicles.ErrVehicleNotFound
	}
	return s.records.ListByVehicle(ctx, vehicleID)
}
