package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/digihome/digihome-core/internal/infrastructure/config"
)

// testConfig returns a broker config used by the unit and integration tests.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "digihome-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "digihome",
	}
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("digihome")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ProvisioningOnline", topics.ProvisioningOnline(), "digihome/provisioning/online"},
		{"ProvisioningConfirm", topics.ProvisioningConfirm(), "digihome/provisioning/confirm"},
		{"DeviceStatus", topics.DeviceStatus("AABB"), "digihome/devices/AABB/status"},
		{"DeviceTelemetry", topics.DeviceTelemetry("AABB"), "digihome/devices/AABB/telemetry"},
		{"DeviceAlert", topics.DeviceAlert("AABB"), "digihome/devices/AABB/alert"},
		{"DeviceCommand", topics.DeviceCommand("AABB"), "digihome/devices/AABB/command"},
		{"CoreStatus", topics.CoreStatus(), "digihome/core/status"},
		{"All", topics.All(), "digihome/#"},
		{"custom prefix", NewTopics("lab").DeviceCommand("X"), "lab/devices/X/command"},
		{"zero value uses default", Topics{}.All(), "digihome/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopicsParse(t *testing.T) {
	topics := NewTopics("digihome")

	tests := []struct {
		topic    string
		category string
		kind     string
		ok       bool
	}{
		{"digihome/provisioning/online", CategoryProvisioning, KindOnline, true},
		{"digihome/devices/A1/telemetry", CategoryDevices, KindTelemetry, true},
		{"digihome/devices/A1/alert", CategoryDevices, KindAlert, true},
		{"digihome/core", "", "", false},
		{"other/devices/A1/status", "", "", false},
		{"digihomeX/devices/A1/status", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			category, kind, ok := topics.Parse(tt.topic)
			if category != tt.category || kind != tt.kind || ok != tt.ok {
				t.Errorf("Parse(%q) = %q, %q, %v; want %q, %q, %v",
					tt.topic, category, kind, ok, tt.category, tt.kind, tt.ok)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "core"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "digihome-test" {
		t.Errorf("ClientID = %q, want digihome-test", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want core/secret", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil, want TLS 1.2 config")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("digihome"), "digihome-test")

	if !opts.WillEnabled || opts.WillTopic != "digihome/core/status" || !opts.WillRetained {
		t.Fatalf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var payload statusPayload
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload.Status != "offline" || payload.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", payload)
	}
}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	t.Run("delivers topic and payload", func(t *testing.T) {
		var gotTopic, gotPayload string
		c.wrapHandler(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		})(nil, fakeMessage{topic: "digihome/provisioning/online", payload: []byte(`{"deviceId":"X"}`)})

		if gotTopic != "digihome/provisioning/online" || gotPayload != `{"deviceId":"X"}` {
			t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
		}
	})

	t.Run("logs handler error", func(t *testing.T) {
		c.wrapHandler(func(string, []byte) error {
			return errors.New("bad payload")
		})(nil, fakeMessage{topic: "digihome/x"})

		logger.mu.Lock()
		defer logger.mu.Unlock()
		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})

	t.Run("recovers panic", func(t *testing.T) {
		c.wrapHandler(func(string, []byte) error {
			panic("boom")
		})(nil, fakeMessage{topic: "digihome/x"})

		logger.mu.Lock()
		defer logger.mu.Unlock()
		if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
			t.Errorf("errors = %v, want panic entry", logger.errors)
		}
	})
}

func TestClientNotConnected(t *testing.T) {
	c := newClient(testConfig())

	if c.IsConnected() {
		t.Fatal("IsConnected() = true for a client that never connected")
	}
	if err := c.Publish("digihome/x", []byte("{}"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("digihome/#", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "digihome/x", nil, 3, ErrInvalidQoS},
		{"oversized payload", "digihome/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("digihome/#", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v", err)
	}
	if err := c.Subscribe("digihome/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if c.HasSubscription("digihome/#") {
		t.Error("failed subscribe must not be tracked")
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := newClient(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func ExampleTopics_DeviceCommand() {
	fmt.Println(NewTopics("digihome").DeviceCommand("A1B2C3D4E5F6"))
	// Output: digihome/devices/A1B2C3D4E5F6/command
}
