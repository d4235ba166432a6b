package maintenance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Record is one maintenance event for a vehicle. Records are append
// only; they are never mutated after creation.
type Record struct {
	ID          string    `json:"id"`
	VehicleID   string    `json:"vehicleId"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrInvalidRecord indicates record input failed validation.
var ErrInvalidRecord = errors.New("invalid maintenance record")

// NewRecord validates input and builds a record with a fresh id.
func NewRecord(vehicleID string, date time.Time, description string, cost float64) (*Record, error) {
	record := &Record{
		ID:          NewRecordID(),
		VehicleID:   vehicleID,
		Date:        date.UTC(),
		Description: description,
		Cost:        cost,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// Validate checks record constraints.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("maintenance: nil record")
	}
	if r.VehicleID == "" {
		return fmt.Errorf("maintenance: %w: vehicleId is required", ErrInvalidRecord)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("maintenance: %w: date is required", ErrInvalidRecord)
	}
	if r.Description == "" {
		return fmt.Errorf("maintenance: %w: description is required", ErrInvalidRecord)
	}
	if r.Cost < 0 {
		return fmt.Errorf("maintenance: %w: cost must not be negative", ErrInvalidRecord)
	}
	return nil
}

// NewRecordID generates a random record identifier.
func NewRecordID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString(buf[:])
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return hex.EncodeToString(buf[:])
}

// Repository persists maintenance records.
type Repository interface {
	Insert(ctx context.Context, record *Record) error
	ListByVehicle(ctx context.Context, vehicleID string) ([]Record, error)
}
