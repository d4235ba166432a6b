package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	maintenance "fleet-telemetry-cloud/internal/maintenance/domain"
)

// RecordRepository is an in-memory maintenance.Repository for tests.
type RecordRepository struct {
	mu      sync.Mutex
	records []maintenance.Record
}

// NewRecordRepository constructs an empty repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// Insert stores a record.
func (r *RecordRepository) Insert(_ context.Context, record *maintenance.Record) error {
	if record == nil {
		return errors.New("memory repo: nil record")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record.CreatedAt = time.Now().UTC()
	r.records = append(r.records, *record)
	return nil
}

// ListByVehicle returns records for a vehicle in insertion order.
func (r *RecordRepository) ListByVehicle(_ context.Context, vehicleID string) ([]maintenance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []maintenance.Record
	for _, record := range r.records {
		if record.VehicleID == vehicleID {
			result = append(result, record)
		}
	}
	return result, nil
}
