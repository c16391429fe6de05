package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/digihome/digihome-core/internal/infrastructure/config"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "digihome-dev-token",
		Org:           "digihome",
		Bucket:        "power",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run against a local InfluxDB")
	}
	client, err := Connect(context.Background(), testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if n := c.FailedWrites(); n != 0 {
		t.Errorf("FailedWrites() = %d, want 0", n)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	c.WritePowerSummary("A1B2C3", 220, 0.5, 100, 0.9, 1, time.Now())
}

func TestPowerSummaryPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := powerSummaryPoint("A1B2C3D4E5F6", 220, 0.5, 100, 0.9, 12.5, at)

	line := write.PointToLineProtocol(p, time.Second)

	for _, want := range []string{
		"power_log,device_id=A1B2C3D4E5F6 ",
		"energy_kwh=12.5",
		"power=100",
		"power_factor=0.9",
		"voltage=220",
		"current=0.5",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(line), "1772352000") {
		t.Errorf("line protocol %q does not end with the summary timestamp", line)
	}
}

func TestWritePowerSummary_Integration(t *testing.T) {
	client := connectOrSkip(t)

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })

	client.WritePowerSummary("TEST01", 220, 0.5, 100, 0.9, 1.25, time.Now())
	client.Flush()

	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
