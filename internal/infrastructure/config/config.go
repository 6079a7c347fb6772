package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for VoltGrid Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Microgrid    MicrogridConfig    `yaml:"microgrid"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Fieldbus     FieldbusConfig     `yaml:"fieldbus"`
}

// MicrogridConfig contains the static microgrid metadata served by GetMetadata.
type MicrogridConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains the geographic coordinates of the microgrid site.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig contains SQLite database settings for the component tables.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the fieldbus broker connection.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig identifies the broker endpoint.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig carries optional broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig shapes the reconnect backoff. MaxAttempts of zero
// retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig points at the certificate pair for the HTTPS listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig sets HTTP server timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists what the browser dashboards may send. Empty lists
// fall back to permissive defaults.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the streaming endpoints
// (telemetry server-streams and the bounds client-stream).
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects log level, format, and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OrchestratorConfig contains lifecycle command execution settings.
type OrchestratorConfig struct {
	// ActionTimeout bounds each individual adapter action in seconds.
	// A hung adapter call surfaces as a timeout failure instead of holding
	// the per-component command lock indefinitely.
	ActionTimeout int `yaml:"action_timeout"`

	// NonBlocking selects the overlap policy for commands targeting the
	// same component: true rejects with a busy error, false queues behind
	// the in-flight command.
	NonBlocking bool `yaml:"non_blocking"`
}

// TelemetryConfig contains fan-out buffering settings.
type TelemetryConfig struct {
	// BufferSize is the per-subscriber sample buffer.
	BufferSize int `yaml:"buffer_size"`

	// OverflowPolicy is "drop_oldest" or "drop_newest".
	OverflowPolicy string `yaml:"overflow_policy"`
}

// FieldbusConfig contains settings for the MQTT device driver bridge.
type FieldbusConfig struct {
	// TopicPrefix is the root of the driver topic tree
	// ({prefix}/command/{driver}/{address}, {prefix}/telemetry/{driver}/{address}).
	TopicPrefix string `yaml:"topic_prefix"`

	// RequestTimeout bounds request/reply exchanges with device drivers
	// in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// Load builds the configuration in three layers: hardcoded defaults, then
// the YAML file, then VOLTGRID_* environment overrides. Validation runs on
// the merged result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig is the baseline a config file overrides.
func defaultConfig() *Config {
	return &Config{
		Microgrid: MicrogridConfig{
			ID:   "microgrid-001",
			Name: "VoltGrid",
		},
		Database: DatabaseConfig{
			Path:        "./data/voltgrid.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "voltgrid-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Orchestrator: OrchestratorConfig{
			ActionTimeout: 5,
			NonBlocking:   false,
		},
		Telemetry: TelemetryConfig{
			BufferSize:     64,
			OverflowPolicy: "drop_oldest",
		},
		Fieldbus: FieldbusConfig{
			TopicPrefix:    "voltgrid",
			RequestTimeout: 5,
		},
	}
}

// applyEnvOverrides lets deployment tooling inject secrets and host
// bindings without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOLTGRID_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("VOLTGRID_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VOLTGRID_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VOLTGRID_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("VOLTGRID_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("VOLTGRID_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate reports every problem at once rather than failing on the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Microgrid.ID == "" {
		errs = append(errs, "microgrid.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Orchestrator.ActionTimeout < 1 {
		errs = append(errs, "orchestrator.action_timeout must be at least 1 second")
	}

	if c.Telemetry.BufferSize < 1 {
		errs = append(errs, "telemetry.buffer_size must be at least 1")
	}
	switch c.Telemetry.OverflowPolicy {
	case "drop_oldest", "drop_newest":
	default:
		errs = append(errs, "telemetry.overflow_policy must be drop_oldest or drop_newest")
	}

	if c.Fieldbus.TopicPrefix == "" {
		errs = append(errs, "fieldbus.topic_prefix is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout converts the configured read timeout to a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout converts the configured write timeout to a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout converts the configured idle timeout to a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetActionTimeout returns the orchestrator per-action timeout as a Duration.
func (c *OrchestratorConfig) GetActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeout) * time.Second
}

// GetRequestTimeout returns the fieldbus request/reply timeout as a Duration.
func (c *FieldbusConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
