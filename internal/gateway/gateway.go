package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/infrastructure/mqtt"
	"github.com/digihome/digihome-core/internal/telemetry"
)

// Defaults for Config.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
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

// Publisher is the broker connection. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// ClaimTracker receives provisioning announcements.
type ClaimTracker interface {
	Online(deviceID string)
	Confirm(deviceID string)
}

// TelemetryIngester receives metering samples.
type TelemetryIngester interface {
	Ingest(ctx context.Context, s telemetry.Sample, raw []byte) error
}

// AlertHandler reacts to device faults.
type AlertHandler interface {
	HandleAlert(ctx context.Context, msg AlertMessage) error
}

// StatusRecorder stores device presence.
type StatusRecorder interface {
	SetOnline(ctx context.Context, id string, online bool) error
}

// Config tunes dispatch.
type Config struct {
	// Workers is the number of ordered dispatch queues.
	Workers int
	// QueueSize is the capacity of each queue.
	QueueSize int
	// QoS is used for outbound publishes.
	QoS byte
}

// Handlers are the consumers of decoded messages. A nil handler drops
// its messages.
type Handlers struct {
	Claims    ClaimTracker
	Telemetry TelemetryIngester
	Alerts    AlertHandler
	Status    StatusRecorder
}

// Gateway connects the broker to the rest of the core. Inbound messages
// are decoded at the transport callback and queued to a worker chosen by
// device id, so one device's messages are handled in arrival order while
// different devices proceed in parallel.
//
// Thread Safety:
//   - HandleMessage, Publish and SendCommand are safe for concurrent use.
//   - Run must be called once.
type Gateway struct {
	pub      Publisher
	topics   mqtt.Topics
	qos      byte
	handlers Handlers
	logger   Logger

	queues  []chan Message
	dropped atomic.Uint64
}

// New creates a gateway. Messages handled before Run starts are queued.
func New(cfg Config, pub Publisher, topics mqtt.Topics, handlers Handlers, logger Logger) *Gateway {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}

	queues := make([]chan Message, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan Message, cfg.QueueSize)
	}

	return &Gateway{
		pub:      pub,
		topics:   topics,
		qos:      cfg.QoS,
		handlers: handlers,
		logger:   logger,
		queues:   queues,
	}
}

// SetAlertHandler installs the alert handler. The overcurrent handler
// publishes through the gateway, so it is attached after New. Call before Run.
func (g *Gateway) SetAlertHandler(h AlertHandler) {
	g.handlers.Alerts = h
}

// HandleMessage is the broker subscription callback. It never blocks on
// downstream work and never returns decode failures to the transport.
func (g *Gateway) HandleMessage(topic string, payload []byte) error {
	msg, err := Decode(g.topics, topic, payload)
	switch {
	case errors.Is(err, ErrUnknownTopic):
		g.logger.Debug("ignoring message on unhandled topic", "topic", topic)
		return nil
	case err != nil:
		g.logger.Warn("dropping malformed message", "topic", topic, "error", err)
		return nil
	}

	q := g.queues[shard(msg.Device(), len(g.queues))]
	select {
	case q <- msg:
	default:
		g.dropped.Add(1)
		g.logger.Warn("dispatch queue full, message dropped", "topic", topic, "device_id", msg.Device())
	}
	return nil
}

// Dropped returns how many messages were discarded because a queue was full.
func (g *Gateway) Dropped() uint64 {
	return g.dropped.Load()
}

// Run processes queued messages until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, q := range g.queues {
		wg.Add(1)
		go func(q <-chan Message) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-q:
					g.dispatch(ctx, msg)
				}
			}
		}(q)
	}
	wg.Wait()
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case OnlineMessage:
		if g.handlers.Claims != nil {
			g.handlers.Claims.Online(m.DeviceID)
		}
	case ConfirmMessage:
		if g.handlers.Claims != nil {
			g.handlers.Claims.Confirm(m.DeviceID)
		}
	case StatusMessage:
		if g.handlers.Status == nil {
			return
		}
		err := g.handlers.Status.SetOnline(ctx, m.DeviceID, m.Online)
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			g.logger.Debug("status from unregistered device", "device_id", m.DeviceID)
		case err != nil:
			g.logger.Warn("recording device status failed", "device_id", m.DeviceID, "error", err)
		}
	case TelemetryMessage:
		if g.handlers.Telemetry == nil {
			return
		}
		if err := g.handlers.Telemetry.Ingest(ctx, m.Sample, m.Raw); err != nil {
			g.logger.Warn("telemetry ingest failed", "device_id", m.Sample.DeviceID, "error", err)
		}
	case AlertMessage:
		if g.handlers.Alerts == nil {
			return
		}
		if err := g.handlers.Alerts.HandleAlert(ctx, m); err != nil {
			g.logger.Error("alert handling failed", "device_id", m.DeviceID, "error", err)
		}
	}
}

// Publish JSON-encodes message and publishes it on topic. There is no
// queue and no retry: while disconnected the message is logged and lost.
func (g *Gateway) Publish(topic string, message any) error {
	if g.pub == nil || !g.pub.IsConnected() {
		g.logger.Error("publish skipped, transport not connected", "topic", topic)
		return ErrNotConnected
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding message for %s: %w", topic, err)
	}

	if err := g.pub.Publish(topic, data, g.qos, false); err != nil {
		g.logger.Error("publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// SendCommand publishes cmd on deviceID's command topic.
func (g *Gateway) SendCommand(deviceID string, cmd Command) error {
	if err := g.Publish(g.topics.DeviceCommand(deviceID), cmd); err != nil {
		return err
	}
	g.logger.Debug("command sent", "device_id", deviceID, "action", cmd.Action)
	return nil
}

// shard maps a device id onto one of n queues.
func shard(deviceID string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(deviceID)) //nolint:errcheck // hash writes never fail
	return int(h.Sum32() % uint32(n))
}
