package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// Config is the root configuration structure for the plant catalog.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Seed     SeedConfig     `yaml:"seed"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects and configures the document store.
//
// For the sqlite driver URL is the database file path and Name is informational.
// For the mongodb driver URL is the connection string and Name the database.
type DatabaseConfig struct {
	Driver      string            `yaml:"driver"`
	URL         string            `yaml:"url"`
	Name        string            `yaml:"name"`
	WALMode     bool              `yaml:"wal_mode"`
	BusyTimeout int               `yaml:"busy_timeout"`
	Collections CollectionsConfig `yaml:"collections"`
}

// CollectionsConfig names the collections holding each entity kind.
type CollectionsConfig struct {
	Plants  string `yaml:"plants"`
	Devices string `yaml:"devices"`
	Users   string `yaml:"users"`
	General string `yaml:"general"`
}

// CleanupConfig controls the staleness sweeper.
type CleanupConfig struct {
	// ThresholdMinutes is how long a plant or device may go without an
	// update before the sweeper evicts it.
	ThresholdMinutes int `yaml:"threshold_minutes"`

	// IntervalSeconds is the sweep cadence.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// SeedConfig holds the broker and main topic written to the general
// collection on first start. Existing values are never overwritten.
type SeedConfig struct {
	Broker    SeedBrokerConfig `yaml:"broker"`
	MainTopic string           `yaml:"main_topic"`
}

// SeedBrokerConfig is the broker address handed out to field agents.
type SeedBrokerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings used for catalog
// change announcements.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for env-only configuration
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			URL:         "./data/catalog.db",
			Name:        "catalog",
			WALMode:     true,
			BusyTimeout: 5,
			Collections: CollectionsConfig{
				Plants:  "plants",
				Devices: "devices",
				Users:   "users",
				General: "general",
			},
		},
		Cleanup: CleanupConfig{
			ThresholdMinutes: 60,
			IntervalSeconds:  300,
		},
		Seed: SeedConfig{
			Broker: SeedBrokerConfig{
				IP:   "mqtt.eclipseprojects.io",
				Port: 1883,
			},
			MainTopic: "SMM",
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
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "smm-catalog",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Catalog-specific variables follow the pattern CATALOG_SECTION_KEY; the bare
// names the field agents' deployment already exports (MONGO_URL, DB,
// PLANTS_COLLECTION, CLEANUP_THRESHOLD, ...) are honoured too.
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := firstEnv("CATALOG_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := firstEnv("CATALOG_DATABASE_URL", "MONGO_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := firstEnv("CATALOG_DATABASE_NAME", "DB"); v != "" {
		cfg.Database.Name = v
	}
	if v := firstEnv("PLANTS_COLLECTION"); v != "" {
		cfg.Database.Collections.Plants = v
	}
	if v := firstEnv("DEVICES_COLLECTION"); v != "" {
		cfg.Database.Collections.Devices = v
	}
	if v := firstEnv("USERS_COLLECTION"); v != "" {
		cfg.Database.Collections.Users = v
	}
	if v := firstEnv("GENERAL_COLLECTION"); v != "" {
		cfg.Database.Collections.General = v
	}

	// Cleanup
	if err := envInt(&cfg.Cleanup.ThresholdMinutes, "CATALOG_CLEANUP_THRESHOLD", "CLEANUP_THRESHOLD"); err != nil {
		return err
	}
	if err := envInt(&cfg.Cleanup.IntervalSeconds, "CATALOG_CLEANUP_INTERVAL", "CLEANUP_INTERVAL"); err != nil {
		return err
	}

	// API
	if v := firstEnv("CATALOG_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if err := envInt(&cfg.API.Port, "CATALOG_API_PORT"); err != nil {
		return err
	}

	// MQTT
	if v := firstEnv("CATALOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := firstEnv("CATALOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := firstEnv("CATALOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := firstEnv("CATALOG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := firstEnv("CATALOG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// firstEnv returns the value of the first non-empty environment variable.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// envInt overwrites dst with the first non-empty variable parsed as an int.
func envInt(dst *int, keys ...string) error {
	for _, k := range keys {
		v := os.Getenv(k)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", k, err)
		}
		*dst = n
		return nil
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	switch c.Database.Driver {
	case DriverSQLite, DriverMongoDB:
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q", DriverSQLite, DriverMongoDB))
	}
	if c.Database.URL == "" {
		errs = append(errs, "database.url is required")
	}
	if c.Database.Driver == DriverMongoDB && c.Database.Name == "" {
		errs = append(errs, "database.name is required for the mongodb driver")
	}
	errs = append(errs, c.Database.Collections.validate()...)

	// Cleanup validation
	if c.Cleanup.ThresholdMinutes <= 0 {
		errs = append(errs, "cleanup.threshold_minutes must be positive")
	}
	if c.Cleanup.IntervalSeconds <= 0 {
		errs = append(errs, "cleanup.interval_seconds must be positive")
	}

	// Seed validation
	if c.Seed.Broker.Port < 1 || c.Seed.Broker.Port > 65535 {
		errs = append(errs, "seed.broker.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate reports empty or duplicated collection names.
func (c CollectionsConfig) validate() []string {
	var errs []string
	seen := make(map[string]string, 4)
	for _, col := range []struct{ key, name string }{
		{"plants", c.Plants},
		{"devices", c.Devices},
		{"users", c.Users},
		{"general", c.General},
	} {
		if col.name == "" {
			errs = append(errs, fmt.Sprintf("database.collections.%s is required", col.key))
			continue
		}
		if other, dup := seen[col.name]; dup {
			errs = append(errs, fmt.Sprintf("database.collections.%s duplicates %s", col.key, other))
			continue
		}
		seen[col.name] = col.key
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// StalenessThreshold returns the cleanup threshold as a Duration.
func (c *Config) StalenessThreshold() time.Duration {
	return time.Duration(c.Cleanup.ThresholdMinutes) * time.Minute
}

// SweepInterval returns the cleanup cadence as a Duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalSeconds) * time.Second
}
