package device

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxIDLength   = 64
	maxNameLength = 100
)

// ValidateID checks that id is usable as a single MQTT topic level.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidID, maxIDLength)
	}
	if strings.ContainsAny(id, "/+#\x00 ") {
		return fmt.Errorf("%w: %q contains a reserved topic character", ErrInvalidID, id)
	}
	return nil
}

// ValidateThreshold checks an overcurrent threshold in amps.
func ValidateThreshold(amps float64) error {
	if !(amps > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, amps)
	}
	return nil
}

// Validate checks a device before it is stored.
func (d *Device) Validate() error {
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if d.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidID)
	}
	name := strings.TrimSpace(d.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, maxNameLength)
	}
	return ValidateThreshold(d.Config.OvercurrentThreshold)
}
