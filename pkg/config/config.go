// Package config pkg/config/config.go
//
// Package config loads and validates the daemon configuration from a
// YAML file. Every field has a default so an empty file yields a
// runnable configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kmatveev/upsmon/pkg/alerts"
)

const (
	defaultSerialPort = "/dev/ttyUSB0"
	defaultBaudRate   = 9600
	defaultInterval   = 30 * time.Second
	defaultTimeout    = 2 * time.Second
	defaultMaxErrors  = 5
	defaultListenAddr = ":8080"
	defaultMQTTPort   = 1883
	defaultMQTTTopic  = "ups/telemetry"
	defaultMQTTClient = "upsmon"
)

// Duration wraps time.Duration to accept either a bare number of
// seconds or a Go duration string in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %s", errInvalidDuration, value.Value)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", errInvalidDuration, raw)
	}

	*d = Duration(parsed)

	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// SerialConfig describes the device link.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MonitoringConfig tunes the polling scheduler.
type MonitoringConfig struct {
	Interval  Duration `yaml:"interval"`
	Timeout   Duration `yaml:"timeout"`
	MaxErrors int      `yaml:"max_errors"`
}

// WebConfig describes the HTTP surface.
type WebConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// MQTTConfig describes the telemetry publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AlertsConfig describes the outbound alert webhook. It mirrors
// alerts.WebhookConfig with YAML-friendly field types.
type AlertsConfig struct {
	Enabled  bool              `yaml:"enabled"`
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Cooldown Duration          `yaml:"cooldown,omitempty"`
}

// Webhook converts the section into the alerter's own config type.
func (a AlertsConfig) Webhook() alerts.WebhookConfig {
	return alerts.WebhookConfig{
		Enabled:  a.Enabled,
		URL:      a.URL,
		Headers:  a.Headers,
		Cooldown: a.Cooldown.Duration(),
	}
}

// LoggingConfig controls log destinations.
type LoggingConfig struct {
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Config is the root of the YAML file.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Web        WebConfig        `yaml:"web"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns a configuration with every field set to its default.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Port:     defaultSerialPort,
			BaudRate: defaultBaudRate,
		},
		Monitoring: MonitoringConfig{
			Interval:  Duration(defaultInterval),
			Timeout:   Duration(defaultTimeout),
			MaxErrors: defaultMaxErrors,
		},
		Web: WebConfig{
			Enabled:    true,
			ListenAddr: defaultListenAddr,
		},
		MQTT: MQTTConfig{
			Port:     defaultMQTTPort,
			Topic:    defaultMQTTTopic,
			ClientID: defaultMQTTClient,
		},
		Logging: LoggingConfig{
			Console: true,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing
// file is an error; use Default when no file was given.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w '%s': %w", errReadConfig, path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w '%s': %w", errParseConfig, path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyDefaults restores defaults for fields the file set to zero
// values.
func (c *Config) applyDefaults() {
	if c.Serial.Port == "" {
		c.Serial.Port = defaultSerialPort
	}

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = defaultBaudRate
	}

	if c.Monitoring.Interval <= 0 {
		c.Monitoring.Interval = Duration(defaultInterval)
	}

	if c.Monitoring.Timeout <= 0 {
		c.Monitoring.Timeout = Duration(defaultTimeout)
	}

	if c.Monitoring.MaxErrors <= 0 {
		c.Monitoring.MaxErrors = defaultMaxErrors
	}

	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = defaultListenAddr
	}

	if c.MQTT.Port == 0 {
		c.MQTT.Port = defaultMQTTPort
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = defaultMQTTTopic
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultMQTTClient
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return errNoSerialPort
	}

	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("%w: %d", errBadBaudRate, c.Serial.BaudRate)
	}

	if c.Monitoring.Timeout.Duration() >= c.Monitoring.Interval.Duration() {
		return fmt.Errorf("%w: timeout %s, interval %s",
			errTimeoutTooLong, c.Monitoring.Timeout.Duration(), c.Monitoring.Interval.Duration())
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errNoMQTTBroker
	}

	if c.Alerts.Enabled && c.Alerts.URL == "" {
		return errNoWebhookURL
	}

	return nil
}
