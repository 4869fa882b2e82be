// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"firestige.xyz/airsniff/internal/filter"
	"firestige.xyz/airsniff/internal/protocol"
)

// Config is the top-level configuration. Maps to the `airsniff:` root key in
// YAML; env vars use the AIRSNIFF_ prefix (e.g. AIRSNIFF_DEVICE_PORT).
type Config struct {
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Device ───

// DeviceConfig selects the transport to the sniffer.
type DeviceConfig struct {
	Port        string        `mapstructure:"port" yaml:"port"` // serial device path or tcp://host:port
	Baud        int           `mapstructure:"baud" yaml:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
}

// ─── Session ───

type SessionConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	CloseTimeout   time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
}

// ─── Capture ───

// CaptureConfig holds the scan defaults.
type CaptureConfig struct {
	Channel uint8    `mapstructure:"channel" yaml:"channel"` // 0 = all channels
	Filter  string   `mapstructure:"filter" yaml:"filter"`   // all | mgmt,ctrl,data
	Pcap    string   `mapstructure:"pcap" yaml:"pcap"`       // empty = no pcap output
	Watch   []string `mapstructure:"watch" yaml:"watch"`     // SSID substrings that raise alerts
	Color   bool     `mapstructure:"color" yaml:"color"`

	// AlertCooldown suppresses repeat alert log records for one network.
	AlertCooldown time.Duration `mapstructure:"alert_cooldown" yaml:"alert_cooldown"`
	Kafka         KafkaConfig   `mapstructure:"kafka" yaml:"kafka"`
}

// KafkaConfig enables publishing frames to Kafka when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Compression  string        `mapstructure:"compression" yaml:"compression"` // none | gzip | snappy | lz4
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format  string           `mapstructure:"format" yaml:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

type configRoot struct {
	Airsniff Config `mapstructure:"airsniff"`
}

// Load reads configuration from path, layered over defaults and env vars.
// With an empty path the working directory and ~/.config/airsniff are
// searched for airsniff.yaml, and finding nothing is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("airsniff")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/airsniff")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `airsniff.` key prefix maps to AIRSNIFF_ via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Airsniff

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var root configRoot
	hook := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&root, hook); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return &root.Airsniff
}

// setDefaults sets default values; all keys use the "airsniff." prefix to
// match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Device defaults
	v.SetDefault("airsniff.device.port", "")
	v.SetDefault("airsniff.device.baud", 115200)
	v.SetDefault("airsniff.device.read_timeout", "50ms")

	// Session defaults
	v.SetDefault("airsniff.session.command_timeout", "3s")
	v.SetDefault("airsniff.session.close_timeout", "2s")

	// Capture defaults
	v.SetDefault("airsniff.capture.channel", 0)
	v.SetDefault("airsniff.capture.filter", "all")
	v.SetDefault("airsniff.capture.pcap", "")
	v.SetDefault("airsniff.capture.watch", []string{"flock"})
	v.SetDefault("airsniff.capture.color", true)
	v.SetDefault("airsniff.capture.alert_cooldown", "1m")
	v.SetDefault("airsniff.capture.kafka.brokers", []string{})
	v.SetDefault("airsniff.capture.kafka.topic", "airsniff.frames")
	v.SetDefault("airsniff.capture.kafka.batch_size", 100)
	v.SetDefault("airsniff.capture.kafka.batch_timeout", "100ms")
	v.SetDefault("airsniff.capture.kafka.compression", "snappy")
	v.SetDefault("airsniff.capture.kafka.max_attempts", 3)

	// Log defaults
	v.SetDefault("airsniff.log.level", "info")
	v.SetDefault("airsniff.log.format", "text")
	v.SetDefault("airsniff.log.outputs.file.enabled", false)
	v.SetDefault("airsniff.log.outputs.file.path", "airsniff.log")
	v.SetDefault("airsniff.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("airsniff.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("airsniff.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("airsniff.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("airsniff.metrics.enabled", false)
	v.SetDefault("airsniff.metrics.listen", ":9464")
	v.SetDefault("airsniff.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and fills in runtime
// defaults for zero values.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	// ── Device ──
	if cfg.Device.Baud < 0 {
		return fmt.Errorf("invalid device.baud: %d", cfg.Device.Baud)
	}
	if cfg.Device.Baud == 0 {
		cfg.Device.Baud = 115200
	}
	if cfg.Device.ReadTimeout <= 0 {
		cfg.Device.ReadTimeout = 50 * time.Millisecond
	}

	// ── Session ──
	if cfg.Session.CommandTimeout <= 0 {
		cfg.Session.CommandTimeout = 3 * time.Second
	}
	if cfg.Session.CloseTimeout <= 0 {
		cfg.Session.CloseTimeout = 2 * time.Second
	}

	// ── Capture ──
	if !protocol.ValidChannel(cfg.Capture.Channel) {
		return fmt.Errorf("%w: capture.channel %d", protocol.ErrInvalidChannel, cfg.Capture.Channel)
	}
	if _, err := filter.ParseTypeMask(cfg.Capture.Filter); err != nil {
		return fmt.Errorf("capture.filter: %w", err)
	}
	if k := cfg.Capture.Kafka; k.Enabled() {
		if k.Topic == "" {
			return fmt.Errorf("capture.kafka.topic is required when brokers are set")
		}
		switch k.Compression {
		case "", "none", "gzip", "snappy", "lz4":
		default:
			return fmt.Errorf("invalid capture.kafka.compression: %s (must be none/gzip/snappy/lz4)", k.Compression)
		}
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}
