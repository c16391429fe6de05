package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("DIGIHOME_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing jwt secret",
			content: `
site:
  id: test-site
database:
  path: "` + filepath.Join(t.TempDir(), "test.db") + `"
`,
		},
		{
			name: "empty database path",
			content: `
database:
  path: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
`,
		},
		{
			name: "bad timezone",
			content: `
site:
  timezone: "Mars/Olympus"
security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DIGIHOME_JWT_SECRET", "")
			t.Setenv("DIGIHOME_CONFIG", writeConfig(t, tt.content))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := run(ctx); err == nil {
				t.Fatal("run() should fail")
			}
		})
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DIGIHOME_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("DIGIHOME_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// Requires an MQTT broker at 127.0.0.1:1883; without one run returns a
// connection error, which is logged rather than failed.
func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DIGIHOME_CONFIG", writeConfig(t, `
site:
  id: test-site
  timezone: "Asia/Jakarta"
database:
  path: "`+filepath.Join(dir, "test.db")+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "digihome-test-startup"
api:
  host: "127.0.0.1"
  port: 18080
security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
logging:
  level: error
  format: text
  output: stdout
`))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Logf("run() returned error: %v (may be due to missing MQTT broker)", err)
	}
}
