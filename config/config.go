// Package config provides YAML configuration parsing for ThermoBoard.
//
// This package enables running ThermoBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Temperature Monitoring System
//	port: 8080
//	poll_interval: 5s
//	history_size: 20
//
//	device:
//	  address: ${DEVICE_ADDR:-172.20.10.2}
//
//	sinks:
//	  mqtt:
//	    broker: tcp://localhost:1883
//	    topic: thermoboard/readings
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/thermoboard"
	"github.com/jpalmerr/thermoboard/internal/device"
)

const (
	// minPollInterval keeps a misconfigured file from hammering the device.
	minPollInterval = 100 * time.Millisecond

	maxHistorySize = 10000

	defaultPort         = 8080
	defaultPollInterval = 5 * time.Second
	defaultHistorySize  = 20
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
)

// Config is the root configuration structure for ThermoBoard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard heading. Defaults to "Temperature Monitoring System".
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between fetches.
	// Accepts duration strings like "5s", "1m", "500ms". Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// HistorySize is how many readings the chart keeps. Defaults to 20.
	HistorySize int `yaml:"history_size"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// LogFormat is json or text. Defaults to json.
	LogFormat string `yaml:"log_format"`

	// Timezone names the IANA zone used to format reading times, e.g.
	// "Europe/Rome". Empty uses the local zone.
	Timezone string `yaml:"timezone"`

	Device DeviceConfig `yaml:"device"`
	Sinks  SinksConfig  `yaml:"sinks"`
}

// DeviceConfig identifies the sensor.
type DeviceConfig struct {
	// Address is the device host or host:port.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Address string `yaml:"address"`
}

// SinksConfig enables optional reading publishers. A nil block is disabled.
type SinksConfig struct {
	MQTT  *MQTTConfig  `yaml:"mqtt"`
	Kafka *KafkaConfig `yaml:"kafka"`
}

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	// Broker is the broker URL. Supports environment variable substitution.
	Broker string `yaml:"broker"`

	Topic string `yaml:"topic"`

	// ClientID prefixes the MQTT client id. Defaults to "thermoboard".
	ClientID string `yaml:"client_id"`

	// QoS is 0, 1 or 2.
	QoS int `yaml:"qos"`

	Retain bool `yaml:"retain"`

	// ConnectTimeout bounds the initial connection. Defaults to 10s.
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	// Brokers are host:port seed brokers. Each supports environment variable
	// substitution.
	Brokers []string `yaml:"brokers"`

	Topic string `yaml:"topic"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Override adjusts a parsed Config before it is validated, e.g. from
// command-line flags.
type Override func(*Config)

// WithAddress replaces device.address. An empty address keeps the file's.
func WithAddress(address string) Override {
	return func(c *Config) {
		if address != "" {
			c.Device.Address = address
		}
	}
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string, overrides ...Override) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, overrides...)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the device address and sink broker
// values. Defaults are applied for Port (8080), PollInterval (5s),
// HistorySize (20), LogLevel (info) and LogFormat (json).
func Parse(data []byte, overrides ...Override) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()
	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.HistorySize == 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if m := c.Sinks.MQTT; m != nil && m.ClientID == "" {
		m.ClientID = "thermoboard"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	expanded, err := expandEnvVars(c.Device.Address)
	if err != nil {
		return fmt.Errorf("device.address: %w", err)
	}
	c.Device.Address = strings.TrimSpace(expanded)

	if c.Device.Address == "" {
		return errors.New("device.address is required")
	}
	if _, err := device.EndpointURL(c.Device.Address); err != nil {
		return fmt.Errorf("device.address: %w", err)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	if c.HistorySize < 1 || c.HistorySize > maxHistorySize {
		return fmt.Errorf("history_size must be between 1 and %d, got %d", maxHistorySize, c.HistorySize)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	if m := c.Sinks.MQTT; m != nil {
		broker, err := expandEnvVars(m.Broker)
		if err != nil {
			return fmt.Errorf("sinks.mqtt.broker: %w", err)
		}
		m.Broker = broker

		if m.Broker == "" {
			return errors.New("sinks.mqtt: broker is required")
		}
		if m.Topic == "" {
			return errors.New("sinks.mqtt: topic is required")
		}
		if m.QoS < 0 || m.QoS > 2 {
			return fmt.Errorf("sinks.mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
		}
		if m.ConnectTimeout.Duration() < 0 {
			return fmt.Errorf("sinks.mqtt: connect_timeout cannot be negative, got %s", m.ConnectTimeout.Duration())
		}
	}

	if k := c.Sinks.Kafka; k != nil {
		if len(k.Brokers) == 0 {
			return errors.New("sinks.kafka: at least one broker is required")
		}
		for i, b := range k.Brokers {
			expanded, err := expandEnvVars(b)
			if err != nil {
				return fmt.Errorf("sinks.kafka.brokers[%d]: %w", i, err)
			}
			if strings.TrimSpace(expanded) == "" {
				return fmt.Errorf("sinks.kafka.brokers[%d]: broker cannot be empty", i)
			}
			k.Brokers[i] = strings.TrimSpace(expanded)
		}
		if k.Topic == "" {
			return errors.New("sinks.kafka: topic is required")
		}
	}

	return nil
}

// Location returns the configured time zone, or time.Local when unset.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		// validated in Parse
		return time.Local
	}
	return loc
}

// Options converts the configuration into Board options.
func (c *Config) Options(logger *slog.Logger) []thermoboard.Option {
	opts := []thermoboard.Option{
		thermoboard.WithAddress(c.Device.Address),
		thermoboard.WithPort(c.Port),
		thermoboard.WithPollingInterval(c.PollInterval.Duration()),
		thermoboard.WithHistorySize(c.HistorySize),
		thermoboard.WithLocation(c.Location()),
	}
	if c.Title != "" {
		opts = append(opts, thermoboard.WithTitle(c.Title))
	}
	if logger != nil {
		opts = append(opts, thermoboard.WithLogger(logger))
	}

	if m := c.Sinks.MQTT; m != nil {
		opts = append(opts, thermoboard.WithMQTTSink(thermoboard.MQTTConfig{
			Broker:         m.Broker,
			Topic:          m.Topic,
			ClientID:       m.ClientID,
			QoS:            byte(m.QoS),
			Retain:         m.Retain,
			ConnectTimeout: m.ConnectTimeout.Duration(),
		}))
	}
	if k := c.Sinks.Kafka; k != nil {
		opts = append(opts, thermoboard.WithKafkaSink(thermoboard.KafkaConfig{
			Brokers: append([]string(nil), k.Brokers...),
			Topic:   k.Topic,
		}))
	}

	return opts
}

// NewLogger builds a logger writing to w with the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
}
