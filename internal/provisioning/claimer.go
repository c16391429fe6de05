package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/digihome/digihome-core/internal/device"
)

// DeviceStore is the part of device.Repository the claim flow needs.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*device.Device, error)
	Create(ctx context.Context, d *device.Device) error
}

// Claimer turns a confirmed announcement into a stored device owned by
// the claiming account.
type Claimer struct {
	tracker *Tracker
	devices DeviceStore
	logger  Logger
}

// NewClaimer creates a Claimer.
func NewClaimer(tracker *Tracker, devices DeviceStore, logger Logger) *Claimer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Claimer{tracker: tracker, devices: devices, logger: logger}
}

// Claim registers deviceID to accountID.
//
// A device that already exists finalizes the pending entry and returns
// ErrAlreadyRegistered. A device that is not confirmed returns
// ErrNotConfirmed. On success the entry is removed.
func (c *Claimer) Claim(ctx context.Context, accountID, deviceID string) (*device.Device, error) {
	if err := device.ValidateID(deviceID); err != nil {
		return nil, err
	}

	existing, err := c.devices.GetByID(ctx, deviceID)
	switch {
	case err == nil:
		c.tracker.FinalizeClaim(deviceID)
		c.logger.Warn("claim for registered device", "device_id", deviceID, "owner_id", existing.OwnerID)
		return nil, ErrAlreadyRegistered
	case !errors.Is(err, device.ErrDeviceNotFound):
		return nil, fmt.Errorf("looking up device: %w", err)
	}

	if !c.tracker.IsConfirmed(deviceID) {
		return nil, ErrNotConfirmed
	}

	d := device.New(deviceID, accountID)
	if err := c.devices.Create(ctx, d); err != nil {
		if errors.Is(err, device.ErrDeviceExists) {
			c.tracker.FinalizeClaim(deviceID)
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("creating device: %w", err)
	}

	c.tracker.FinalizeClaim(deviceID)
	c.logger.Info("device claimed", "device_id", deviceID, "account_id", accountID)
	return d, nil
}

// Status returns a confirmed device id ready to claim, if any.
func (c *Claimer) Status() (string, bool) {
	return c.tracker.FirstConfirmed()
}
