package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Publish modes.
const (
	// PublishJSON publishes one merged JSON document per device.
	PublishJSON = "json"

	// PublishSeparate publishes one topic per parameter value.
	PublishSeparate = "separate"

	// PublishBoth publishes the document and the separate topics.
	PublishBoth = "both"
)

// Config is the root configuration structure for the ISM7 bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Devices  []DeviceConfig `yaml:"devices"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Publish  PublishConfig  `yaml:"publish"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains the ISM7 gateway connection settings.
type GatewayConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`

	// TLS holds the client certificate presented to the gateway.
	TLS GatewayTLSConfig `yaml:"tls"`

	// KeepAlive is the keep-alive period in seconds. Default: 60
	KeepAlive int `yaml:"keep_alive"`

	// PushInterval is the refresh interval requested for push bundles
	// in seconds. Default: 60
	PushInterval int `yaml:"push_interval"`

	// DialTimeout bounds the TCP connect and TLS handshake in seconds.
	DialTimeout int `yaml:"dial_timeout"`

	// Reconnect controls session restarts after a connection loss.
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// GatewayTLSConfig contains the gateway TLS settings.
type GatewayTLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// CAFile verifies the gateway certificate. If empty the gateway
	// certificate is not verified (ISM7 gateways ship self-signed certificates).
	CAFile     string `yaml:"ca_file"`
	ServerName string `yaml:"server_name"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`

	// MaxAttempts limits consecutive failed attempts. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// CatalogConfig contains the static device catalog settings.
type CatalogConfig struct {
	Path string `yaml:"path"`

	// Translate replaces display names and labels using the catalog's
	// translation table.
	Translate bool `yaml:"translate"`
}

// DeviceConfig declares one device expected on the bus.
type DeviceConfig struct {
	ReadBusAddress string `yaml:"read_bus_address"`

	// WriteBusAddress defaults to the read address minus 5.
	WriteBusAddress string `yaml:"write_bus_address,omitempty"`

	// Template is the catalog device name or id.
	Template string `yaml:"device_template"`

	// Parameters restricts the device to these PTIDs. Empty means all.
	Parameters []int `yaml:"parameters,omitempty"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// PublishConfig controls how datapoints are published.
type PublishConfig struct {
	// TopicPrefix is the first topic level. Default: "Wolf"
	TopicPrefix string `yaml:"topic_prefix"`

	// Mode is one of json, separate or both. Default: both
	Mode string `yaml:"mode"`

	Retain bool `yaml:"retain"`

	// HealthInterval is the status publish period in seconds. Default: 30
	HealthInterval int `yaml:"health_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains the Prometheus/status HTTP server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ISM7_SECTION_KEY
// For example: ISM7_GATEWAY_HOST, ISM7_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:         9092,
			KeepAlive:    60,
			PushInterval: 60,
			DialTimeout:  10,
			Reconnect: ReconnectConfig{
				InitialDelay: 5,
				MaxDelay:     120,
			},
		},
		Catalog: CatalogConfig{
			Path: "./configs/catalog.yaml",
		},
		Database: DatabaseConfig{
			Path:        "./data/ism7.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ism7-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Publish: PublishConfig{
			TopicPrefix:    "Wolf",
			Mode:           PublishBoth,
			Retain:         true,
			HealthInterval: 30,
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 9273,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("ISM7_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv("ISM7_GATEWAY_PASSWORD"); v != "" {
		cfg.Gateway.Password = v
	}

	// Catalog
	if v := os.Getenv("ISM7_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	// Database
	if v := os.Getenv("ISM7_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ISM7_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ISM7_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ISM7_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ISM7_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required (set ISM7_GATEWAY_HOST environment variable)")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.Password == "" {
		errs = append(errs, "gateway.password is required (set ISM7_GATEWAY_PASSWORD environment variable)")
	}
	if (c.Gateway.TLS.CertFile == "") != (c.Gateway.TLS.KeyFile == "") {
		errs = append(errs, "gateway.tls.cert_file and gateway.tls.key_file must be set together")
	}
	if c.Gateway.KeepAlive < 1 {
		errs = append(errs, "gateway.keep_alive must be at least 1 second")
	}
	if c.Gateway.PushInterval < 1 {
		errs = append(errs, "gateway.push_interval must be at least 1 second")
	}

	// Catalog and devices
	if c.Catalog.Path == "" {
		errs = append(errs, "catalog.path is required")
	}
	if len(c.Devices) == 0 {
		errs = append(errs, "at least one device is required")
	}
	for i, d := range c.Devices {
		if d.ReadBusAddress == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].read_bus_address is required", i))
		}
		if d.Template == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].device_template is required", i))
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Publish validation
	if c.Publish.TopicPrefix == "" {
		errs = append(errs, "publish.topic_prefix is required")
	}
	switch c.Publish.Mode {
	case PublishJSON, PublishSeparate, PublishBoth:
	default:
		errs = append(errs, "publish.mode must be json, separate, or both")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Metrics validation
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetGatewayAddress returns the gateway host:port.
func (c *Config) GetGatewayAddress() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// GetKeepAlive returns the gateway keep-alive period as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.Gateway.KeepAlive) * time.Second
}

// GetPushInterval returns the push bundle interval as a Duration.
func (c *Config) GetPushInterval() time.Duration {
	return time.Duration(c.Gateway.PushInterval) * time.Second
}

// GetDialTimeout returns the gateway dial timeout as a Duration.
func (c *Config) GetDialTimeout() time.Duration {
	return time.Duration(c.Gateway.DialTimeout) * time.Second
}

// GetHealthInterval returns the status publish period as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Publish.HealthInterval) * time.Second
}

// GetMetricsAddress returns the metrics listen address.
func (c *Config) GetMetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Metrics.Host, c.Metrics.Port)
}
