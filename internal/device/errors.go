package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist
	// (or exists under a different owner for owner-scoped lookups).
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidID is returned when a hardware id cannot be used as a topic level.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidThreshold is returned for a non-positive overcurrent threshold.
	ErrInvalidThreshold = errors.New("device: invalid overcurrent threshold")
)
