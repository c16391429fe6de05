package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/gateway"
)

// Logger is the logging surface of this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceStore is the part of device.Repository the engine needs.
type DeviceStore interface {
	GetOwned(ctx context.Context, ownerID, id string) (*device.Device, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// CommandSender publishes device commands.
type CommandSender interface {
	SendCommand(deviceID string, cmd gateway.Command) error
}

// Forwarder delivers a payload to an account's live session.
type Forwarder interface {
	Forward(accountID string, payload []byte) bool
}

// Engine applies due schedules once a minute.
//
// Thread Safety:
//   - Tick is single-flight; an overlapping call returns ErrTickInProgress.
type Engine struct {
	repo     Repository
	devices  DeviceStore
	commands CommandSender
	router   Forwarder
	loc      *time.Location
	logger   Logger

	running atomic.Bool
	now     func() time.Time
}

// NewEngine creates an engine evaluating schedules in loc.
func NewEngine(repo Repository, devices DeviceStore, commands CommandSender, router Forwarder, loc *time.Location, logger Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		repo:     repo,
		devices:  devices,
		commands: commands,
		router:   router,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// decision is the state one (owner, device) pair should be in.
type decision struct {
	ownerID    string
	deviceID   string
	on         bool
	scheduleID string
}

// resolve reduces due schedules to one target state per (owner, device).
// schedules must be in creation order; the most recently created schedule
// for a pair decides its state. Pairs keep the order of their first match.
func resolve(schedules []Schedule, clock string) []decision {
	index := make(map[[2]string]int)
	var out []decision

	for i := range schedules {
		s := &schedules[i]
		on, ok := s.TargetAt(clock)
		if !ok {
			continue
		}
		key := [2]string{s.OwnerID, s.DeviceID}
		d := decision{ownerID: s.OwnerID, deviceID: s.DeviceID, on: on, scheduleID: s.ID}
		if at, seen := index[key]; seen {
			out[at] = d
			continue
		}
		index[key] = len(out)
		out = append(out, d)
	}
	return out
}

// Tick applies every schedule due at now. Devices already in the target
// state are left alone. It returns how many devices were switched. A
// failure for one device is logged and the rest still run.
func (e *Engine) Tick(ctx context.Context, now time.Time) (int, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("schedule tick skipped, previous tick still running")
		return 0, ErrTickInProgress
	}
	defer e.running.Store(false)

	local := now.In(e.loc)
	clock := local.Format(ClockLayout)

	due, err := e.repo.ListDue(ctx, DayTokens(local.Weekday()), clock)
	if err != nil {
		return 0, fmt.Errorf("listing due schedules: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	switched := 0
	for _, d := range resolve(due, clock) {
		changed, err := e.apply(ctx, d, local)
		if err != nil {
			e.logger.Error("applying schedule failed",
				"schedule_id", d.scheduleID, "device_id", d.deviceID, "error", err)
			continue
		}
		if changed {
			switched++
		}
	}

	e.logger.Debug("schedule tick", "clock", clock, "due", len(due), "switched", switched)
	return switched, nil
}

func (e *Engine) apply(ctx context.Context, d decision, at time.Time) (bool, error) {
	dev, err := e.devices.GetOwned(ctx, d.ownerID, d.deviceID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		e.logger.Warn("schedule targets missing device", "schedule_id", d.scheduleID, "device_id", d.deviceID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading device: %w", err)
	}
	if dev.Active == d.on {
		return false, nil
	}

	if err := e.devices.SetActive(ctx, dev.ID, d.on); err != nil {
		return false, fmt.Errorf("recording state: %w", err)
	}

	if err := e.commands.SendCommand(dev.ID, gateway.SetStatus(d.on)); err != nil {
		e.logger.Warn("schedule command not delivered", "device_id", dev.ID, "error", err)
	}

	payload, err := json.Marshal(syntheticReading(dev.ID, d.on, at))
	if err != nil {
		return true, fmt.Errorf("encoding live update: %w", err)
	}
	e.router.Forward(dev.OwnerID, payload)

	e.logger.Info("schedule applied", "schedule_id", d.scheduleID, "device_id", dev.ID, "on", d.on)
	return true, nil
}

// reading is the live update sent when a schedule switches a device, so
// the app reflects the change before the plug's next telemetry report.
type reading struct {
	DeviceID    string  `json:"deviceId"`
	Timestamp   string  `json:"timestamp"`
	Power       float64 `json:"power"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	EnergyKWh   float64 `json:"energyKWh"`
	PowerFactor float64 `json:"powerFactor"`
	Active      bool    `json:"isActive"`
}

func syntheticReading(deviceID string, on bool, at time.Time) reading {
	r := reading{
		DeviceID:    deviceID,
		Timestamp:   at.UTC().Format(time.RFC3339),
		Voltage:     220,
		PowerFactor: 0.9,
		Active:      on,
	}
	if on {
		r.Power = rand.Float64()*50 + 10
		r.Current = rand.Float64() * 0.5
	}
	return r
}

// Run ticks at the start of every minute until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("schedule engine started", "zone", e.loc.String())

	for {
		now := e.now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if _, err := e.Tick(ctx, next); err != nil && !errors.Is(err, ErrTickInProgress) {
				e.logger.Error("schedule tick failed", "error", err)
			}
		}
	}
}
