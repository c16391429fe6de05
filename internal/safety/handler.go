package safety

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/gateway"
)

// AlertOvercurrent is the error code a plug reports when it trips.
const AlertOvercurrent = "OVERCURRENT"

// Notification text sent to the owner when a plug trips.
const (
	overcurrentTitle = "Peringatan Arus Berlebih"
	overcurrentBody  = "Perangkat %s dimatikan karena arus berlebih (%.2f A)."
)

// Logger is the logging surface of this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceStore is the part of device.Repository the handler needs.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*device.Device, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// CommandSender publishes device commands.
type CommandSender interface {
	SendCommand(deviceID string, cmd gateway.Command) error
}

// Notifier delivers a notification to every token of an account.
type Notifier interface {
	Notify(ctx context.Context, accountID, title, body string, data map[string]string) error
}

// Handler reacts to device alerts.
type Handler struct {
	devices  DeviceStore
	commands CommandSender
	notifier Notifier
	logger   Logger
}

// NewHandler creates an alert handler.
func NewHandler(devices DeviceStore, commands CommandSender, notifier Notifier, logger Logger) *Handler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Handler{devices: devices, commands: commands, notifier: notifier, logger: logger}
}

// HandleAlert processes one alert. For an overcurrent alert the device is
// recorded as off, told to switch off and its owner is notified. Every
// alert is acted on; repeats are not suppressed. Alerts of other kinds
// and alerts from unregistered devices are logged only.
func (h *Handler) HandleAlert(ctx context.Context, msg gateway.AlertMessage) error {
	if !strings.EqualFold(msg.Error, AlertOvercurrent) {
		h.logger.Warn("unhandled alert", "device_id", msg.DeviceID, "error", msg.Error, "value", msg.Value)
		return nil
	}

	d, err := h.devices.GetByID(ctx, msg.DeviceID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		h.logger.Warn("overcurrent from unregistered device", "device_id", msg.DeviceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up device %s: %w", msg.DeviceID, err)
	}

	h.logger.Warn("overcurrent, switching device off", "device_id", d.ID, "current", msg.Value)

	if err := h.devices.SetActive(ctx, d.ID, false); err != nil {
		return fmt.Errorf("recording device %s off: %w", d.ID, err)
	}

	// A failed publish still notifies the owner; the device's own
	// protection has already opened the relay.
	if err := h.commands.SendCommand(d.ID, gateway.SetStatus(false)); err != nil {
		h.logger.Error("overcurrent shutoff command failed", "device_id", d.ID, "error", err)
	}

	data := map[string]string{
		"deviceId": d.ID,
		"type":     "overcurrent",
		"value":    strconv.FormatFloat(msg.Value, 'f', -1, 64),
	}
	body := fmt.Sprintf(overcurrentBody, d.Name, msg.Value)
	if err := h.notifier.Notify(ctx, d.OwnerID, overcurrentTitle, body, data); err != nil {
		h.logger.Error("overcurrent notification failed", "device_id", d.ID, "account_id", d.OwnerID, "error", err)
	}
	return nil
}
