package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blescan/internal/device"
	"github.com/srg/blescan/internal/publish"
	"github.com/srg/blescan/internal/scan"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BLESCAN_"

// Config holds application configuration
type Config struct {
	LogLevel string       `yaml:"log_level" default:"panic"`
	Scan     ScanConfig   `yaml:"scan"`
	Output   OutputConfig `yaml:"output"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
}

type ScanConfig struct {
	Duration        time.Duration `yaml:"duration" default:"20s"`
	AllowDuplicates bool          `yaml:"allow_duplicates" default:"true"`
	// ClearOnStart forgets devices from earlier sessions when a new one starts.
	ClearOnStart bool     `yaml:"clear_on_start"`
	BufferSize   uint32   `yaml:"buffer_size" default:"256"`
	AllowList    []string `yaml:"allow"`
	BlockList    []string `yaml:"block"`
	Services     []string `yaml:"services"`
}

type OutputConfig struct {
	Format string `yaml:"format" default:"table"` // table, json
	Badges bool   `yaml:"badges" default:"true"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic" default:"blescan/devices"`
	ClientID string `yaml:"client_id" default:"blescan"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and BLESCAN_* environment variables, in that order.
// Missing files are not an error when path or envFile is empty.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("OUTPUT_FORMAT", &c.Output.Format)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_TOPIC", &c.MQTT.Topic)
	str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	str("MQTT_USERNAME", &c.MQTT.Username)
	str("MQTT_PASSWORD", &c.MQTT.Password)

	if v, ok := os.LookupEnv(EnvPrefix + "SCAN_DURATION"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sSCAN_DURATION %q: %w", EnvPrefix, v, err)
		}
		c.Scan.Duration = d
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SCAN_CLEAR_ON_START"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSCAN_CLEAR_ON_START %q: %w", EnvPrefix, v, err)
		}
		c.Scan.ClearOnStart = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.Scan.Duration < 0 {
		return fmt.Errorf("scan duration must not be negative: %s", c.Scan.Duration)
	}
	if c.Output.Format != "table" && c.Output.Format != "json" {
		return fmt.Errorf("invalid output format %q: must be table or json", c.Output.Format)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d: must be 0, 1 or 2", c.MQTT.QoS)
	}
	if len(c.Scan.Services) > 0 {
		if _, err := device.ValidateUUID(c.Scan.Services...); err != nil {
			return fmt.Errorf("invalid service filter: %w", err)
		}
	}
	return nil
}

// ScanOptions converts the scan section into session options.
func (c *Config) ScanOptions() (scan.Options, error) {
	opts := scan.Options{
		Duration:        c.Scan.Duration,
		AllowDuplicates: c.Scan.AllowDuplicates,
		ClearOnStart:    c.Scan.ClearOnStart,
		BufferSize:      c.Scan.BufferSize,
		Filter: scan.Filter{
			AllowList: c.Scan.AllowList,
			BlockList: c.Scan.BlockList,
		},
	}
	if len(c.Scan.Services) > 0 {
		uuids, err := device.ValidateUUID(c.Scan.Services...)
		if err != nil {
			return scan.Options{}, fmt.Errorf("invalid service filter: %w", err)
		}
		opts.Filter.ServiceUUIDs = uuids
	}
	return opts, nil
}

// MQTTEnabled reports whether snapshots should be published.
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Broker != ""
}

// MQTTSinkConfig converts the mqtt section into sink settings.
func (c *Config) MQTTSinkConfig() publish.MQTTConfig {
	return publish.MQTTConfig{
		Broker:         c.MQTT.Broker,
		ClientID:       c.MQTT.ClientID,
		Username:       c.MQTT.Username,
		Password:       c.MQTT.Password,
		QoS:            c.MQTT.QoS,
		Retain:         c.MQTT.Retain,
		ConnectTimeout: 10 * time.Second,
	}
}

// Level returns the parsed log level, falling back to panic (silent).
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.PanicLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
