package mqtt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/digihome/digihome-core/internal/infrastructure/config"
)

// Logger is the logging surface of the broker client. *logging.Logger
// satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one inbound message.
//
// It runs on paho's delivery goroutine, so it must return quickly; the
// gateway only decodes and enqueues. A returned error is logged, never
// retried.
type MessageHandler func(topic string, payload []byte) error

// Client is the core's single broker connection.
//
// Subscriptions are remembered and replayed on every reconnect, and the
// core announces itself online/offline on the retained core status topic.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	// up mirrors the broker link as seen by the connect/lost callbacks.
	up atomic.Bool

	subMu sync.RWMutex
	subs  map[string]subscription

	hookMu sync.RWMutex
	hooks  hooks
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

type hooks struct {
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker and waits for the first session.
//
// The Last Will marks the core offline if the process dies; paho handles
// later reconnects with backoff and the client replays subscriptions.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no CONNACK from %s:%d within %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// OnConnect fires asynchronously; the link is usable now.
	c.up.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		subs:   make(map[string]subscription),
	}
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

func (c *Client) connected() {
	c.up.Store(true)
	c.replaySubscriptions()
	c.paho.Publish(c.topics.CoreStatus(), c.QoS(), true,
		buildStatusPayload(c.cfg.Broker.ClientID, "online", ""))

	if fn := c.snapshot().onConnect; fn != nil {
		fn()
	}
}

func (c *Client) lost(err error) {
	c.up.Store(false)

	h := c.snapshot()
	if h.logger != nil {
		h.logger.Warn("MQTT connection lost", "error", err)
	}
	if h.onDisconnect != nil {
		h.onDisconnect(err)
	}
}

// replaySubscriptions re-subscribes every remembered pattern, in a stable
// order so reconnect logs are comparable.
func (c *Client) replaySubscriptions() {
	c.subMu.RLock()
	patterns := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		patterns = append(patterns, topic)
	}
	sort.Strings(patterns)
	subs := make([]subscription, len(patterns))
	for i, topic := range patterns {
		subs[i] = c.subs[topic]
	}
	c.subMu.RUnlock()

	for i, topic := range patterns {
		c.paho.Subscribe(topic, subs[i].qos, c.wrapHandler(subs[i].handler))
	}
}

// Close announces a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.paho.Publish(c.topics.CoreStatus(), c.QoS(), true,
			buildStatusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"),
		).WaitTimeout(defaultPublishTimeout)
	}

	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.up.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether commands can be published right now.
func (c *Client) IsConnected() bool {
	return c.up.Load() && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.hookMu.Lock()
	c.hooks.onConnect = callback
	c.hookMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hookMu.Lock()
	c.hooks.onDisconnect = callback
	c.hookMu.Unlock()
}

// SetLogger sets the logger for lost connections, handler errors and
// recovered panics.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.hooks.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) snapshot() hooks {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.hooks
}

// wrapHandler adapts a MessageHandler to paho. A panicking handler is
// logged and contained so the delivery goroutine keeps running.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				if logger := c.snapshot().logger; logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
				}
			}
		}()

		if err := handler(topic, msg.Payload()); err != nil {
			if logger := c.snapshot().logger; logger != nil {
				logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
			}
		}
	}
}
