package provisioning

import "errors"

var (
	// ErrAlreadyRegistered is returned when the device is already in the
	// store. The pending entry is finalized so the caller is not left waiting.
	ErrAlreadyRegistered = errors.New("provisioning: device already registered")

	// ErrNotConfirmed is returned when no confirmed announcement exists.
	ErrNotConfirmed = errors.New("provisioning: device not confirmed or claim window expired")
)
