package vehicles

import "errors"

// ErrVehicleNotFound indicates no vehicle exists for the given id.
var ErrVehicleNotFound = errors.New("vehicle not found")

// ErrDeviceNotFound indicates no vehicle is registered for the given
// device identifier. Readings for unknown devices are never applied
// against a fabricated zero baseline.
var ErrDeviceNotFound = errors.New("device not found")

// ErrInvalidVehicle indicates registration input failed validation.
var ErrInvalidVehicle = errors.New("invalid vehicle")

// ErrDuplicateDevice indicates the device identifier is already bound
// to another vehicle.
var ErrDuplicateDevice = errors.New("device already registered")
