//go:build integration

package mqtt

import (
	"errors"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "digihome-test-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(client.Topics().All(), 1, func(topic string, payload []byte) error {
		if topic == client.Topics().DeviceTelemetry("TEST01") {
			received <- string(payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription("digihome/#") {
		t.Error("subscription not tracked")
	}

	time.Sleep(100 * time.Millisecond)

	want := `{"deviceId":"TEST01","power":12.5}`
	if err := client.Publish(client.Topics().DeviceTelemetry("TEST01"), []byte(want), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("payload = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestReconnectRestoresSubscriptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "digihome-test-reconnect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	reconnected := make(chan struct{}, 1)
	client.SetOnConnect(func() { reconnected <- struct{}{} })

	if err := client.Subscribe(client.Topics().All(), 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	client.handleConnect()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect callback not invoked")
	}
	if !client.HasSubscription(client.Topics().All()) {
		t.Error("subscription lost after reconnect")
	}
}
