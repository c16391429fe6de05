package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for DigiHome Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site         SiteConfig         `yaml:"site"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Budget       BudgetConfig       `yaml:"budget"`
	Push         PushConfig         `yaml:"push"`
}

// SiteConfig contains deployment-wide settings.
type SiteConfig struct {
	ID string `yaml:"id"`

	// Timezone is the IANA zone used for schedule and budget evaluation.
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is the root segment shared by device and core topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains live session settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// InfluxDBConfig contains InfluxDB connection settings.
// When enabled, every flushed power log is mirrored as a point.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings, used when Output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT settings. Tokens are issued elsewhere; the core only verifies them.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ProvisioningConfig contains device claim settings.
type ProvisioningConfig struct {
	// ClaimTimeout is how long an announced device stays claimable.
	ClaimTimeout time.Duration `yaml:"claim_timeout"`
}

// TelemetryConfig contains inbound dispatch and aggregation settings.
type TelemetryConfig struct {
	FlushInterval   time.Duration `yaml:"flush_interval"`
	DispatchWorkers int           `yaml:"dispatch_workers"`
	QueueSize       int           `yaml:"queue_size"`

	// IngestRate limits device record updates from telemetry, per device per
	// second. Samples are always buffered. 0 disables limiting.
	IngestRate  float64 `yaml:"ingest_rate"`
	IngestBurst int     `yaml:"ingest_burst"`
}

// BudgetConfig contains monthly budget monitor settings.
type BudgetConfig struct {
	Enabled bool `yaml:"enabled"`

	// RunAt is the local "HH:MM" at which the daily check fires.
	RunAt string `yaml:"run_at"`

	// WarnRatio is the fraction of the monthly budget that triggers a warning.
	WarnRatio float64 `yaml:"warn_ratio"`

	// Tariffs maps tariff tier names to Rupiah per kWh.
	Tariffs map[string]float64 `yaml:"tariffs"`
}

// PushConfig contains Firebase Cloud Messaging (HTTP v1) settings.
type PushConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the FCM API base URL; messages go to
	// <endpoint>/v1/projects/<project_id>/messages:send.
	Endpoint string `yaml:"endpoint"`

	// ProjectID is the Firebase project. Empty means the project named in
	// the service account credentials.
	ProjectID string `yaml:"project_id"`

	// CredentialsFile is a Google service account JSON key with the
	// firebase.messaging scope.
	CredentialsFile string `yaml:"credentials_file"`

	Timeout time.Duration `yaml:"timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file in the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern DIGIHOME_SECTION_KEY; see
// envBindings. A set but unparsable override fails the load.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	if bad := applyEnvOverrides(cfg); len(bad) > 0 {
		return nil, fmt.Errorf("invalid environment overrides: %s", strings.Join(bad, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "digihome-001",
			Timezone: "Asia/Jakarta",
		},
		Database: DatabaseConfig{
			Path:        "./data/digihome.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "digihome-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "digihome",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/digihome.log",
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Provisioning: ProvisioningConfig{
			ClaimTimeout: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			FlushInterval:   5 * time.Minute,
			DispatchWorkers: 4,
			QueueSize:       256,
		},
		Budget: BudgetConfig{
			Enabled:   true,
			RunAt:     "20:00",
			WarnRatio: 0.8,
			Tariffs: map[string]float64{
				"tier900":  1352.00,
				"tier1300": 1444.70,
				"tier2200": 1444.70,
				"other":    1699.53,
			},
		},
		Push: PushConfig{
			Endpoint: "https://fcm.googleapis.com",
			Timeout:  10 * time.Second,
		},
	}
}

// envBinding ties one DIGIHOME_* variable to a field. set reports whether
// the value parsed; unparsable values leave the field untouched.
type envBinding struct {
	name string
	set  func(c *Config, v string) bool
}

func str(field func(*Config) *string) func(*Config, string) bool {
	return func(c *Config, v string) bool { *field(c) = v; return true }
}

func num(field func(*Config) *int) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		n, err := strconv.Atoi(v)
		if err == nil {
			*field(c) = n
		}
		return err == nil
	}
}

func flag(field func(*Config) *bool) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*field(c) = b
		}
		return err == nil
	}
}

func dur(field func(*Config) *time.Duration) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		d, err := time.ParseDuration(v)
		if err == nil {
			*field(c) = d
		}
		return err == nil
	}
}

// envBindings lists the supported overrides. Secrets belong here rather
// than in the YAML file.
var envBindings = []envBinding{
	{"DIGIHOME_SITE_TIMEZONE", str(func(c *Config) *string { return &c.Site.Timezone })},
	{"DIGIHOME_DATABASE_PATH", str(func(c *Config) *string { return &c.Database.Path })},
	{"DIGIHOME_MQTT_HOST", str(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"DIGIHOME_MQTT_PORT", num(func(c *Config) *int { return &c.MQTT.Broker.Port })},
	{"DIGIHOME_MQTT_USERNAME", str(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"DIGIHOME_MQTT_PASSWORD", str(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"DIGIHOME_API_HOST", str(func(c *Config) *string { return &c.API.Host })},
	{"DIGIHOME_API_PORT", num(func(c *Config) *int { return &c.API.Port })},
	{"DIGIHOME_TELEMETRY_FLUSH_INTERVAL", dur(func(c *Config) *time.Duration { return &c.Telemetry.FlushInterval })},
	{"DIGIHOME_INFLUXDB_ENABLED", flag(func(c *Config) *bool { return &c.InfluxDB.Enabled })},
	{"DIGIHOME_INFLUXDB_TOKEN", str(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"DIGIHOME_PUSH_ENABLED", flag(func(c *Config) *bool { return &c.Push.Enabled })},
	{"DIGIHOME_PUSH_PROJECT_ID", str(func(c *Config) *string { return &c.Push.ProjectID })},
	{"DIGIHOME_PUSH_CREDENTIALS_FILE", str(func(c *Config) *string { return &c.Push.CredentialsFile })},
	{"DIGIHOME_JWT_SECRET", str(func(c *Config) *string { return &c.Security.JWT.Secret })},
}

// applyEnvOverrides copies every non-empty bound variable into cfg and
// returns the names whose values could not be parsed.
func applyEnvOverrides(cfg *Config) []string {
	var rejected []string
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if !b.set(cfg, v) {
			rejected = append(rejected, b.name)
		}
	}
	return rejected
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" || strings.Contains(c.MQTT.TopicPrefix, "/") {
		errs = append(errs, "mqtt.topic_prefix must be a single non-empty topic level")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set DIGIHOME_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Provisioning.ClaimTimeout <= 0 {
		errs = append(errs, "provisioning.claim_timeout must be positive")
	}

	if c.Telemetry.FlushInterval <= 0 {
		errs = append(errs, "telemetry.flush_interval must be positive")
	}
	if c.Telemetry.DispatchWorkers < 1 {
		errs = append(errs, "telemetry.dispatch_workers must be at least 1")
	}
	if c.Telemetry.QueueSize < 1 {
		errs = append(errs, "telemetry.queue_size must be at least 1")
	}
	if c.Telemetry.IngestRate < 0 {
		errs = append(errs, "telemetry.ingest_rate must not be negative")
	}

	if c.Budget.Enabled {
		if _, err := time.Parse("15:04", c.Budget.RunAt); err != nil {
			errs = append(errs, "budget.run_at must be HH:MM")
		}
		if c.Budget.WarnRatio <= 0 || c.Budget.WarnRatio > 1 {
			errs = append(errs, "budget.warn_ratio must be in (0, 1]")
		}
	}

	if c.Push.Enabled {
		if c.Push.Endpoint == "" {
			errs = append(errs, "push.endpoint is required when push is enabled")
		}
		if c.Push.CredentialsFile == "" {
			errs = append(errs, "push.credentials_file is required when push is enabled (set DIGIHOME_PUSH_CREDENTIALS_FILE)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the site time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReadTimeout is Read in seconds as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout is Write in seconds as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout is Idle in seconds as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
