package telemetry

import "errors"

var (
	// ErrFlushInProgress is returned when Flush overlaps a running flush.
	ErrFlushInProgress = errors.New("telemetry: flush already in progress")

	// ErrMissingDeviceID is returned for a sample without a device id.
	ErrMissingDeviceID = errors.New("telemetry: sample has no device id")
)
