// Package config loads agent configuration from a YAML file, environment
// variables, and defaults.
//
// Sources in order of precedence:
//  1. Environment variables (SERCLIENT_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ooblab/serclient/internal/constants"
)

// Config is the full agent configuration.
type Config struct {
	// Serial describes the line to the supervisor.
	Serial SerialConfig `mapstructure:"serial"`

	// CommandTimeout is the per-command execution deadline.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	// RootDir anchors the restart journal and the update log.
	RootDir string `mapstructure:"root_dir"`

	// PoolMaxBytes caps fragment reassembly buffering.
	PoolMaxBytes int `mapstructure:"pool_max_bytes"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SerialConfig mirrors the line settings of the supervisor side.
type SerialConfig struct {
	Driver   string `mapstructure:"driver"` // "serial" or "raw"
	Port     string `mapstructure:"port"`
	Baud     int    `mapstructure:"baud"`
	DataBits int    `mapstructure:"data_bits"`
	Parity   string `mapstructure:"parity"`
	StopBits int    `mapstructure:"stop_bits"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Driver:   "serial",
			Port:     "/dev/ttyS0",
			Baud:     115200,
			DataBits: 8,
			Parity:   "none",
			StopBits: 1,
		},
		CommandTimeout: constants.DefaultCommandTimeout,
		RootDir:        "/var/lib/serclient",
		PoolMaxBytes:   constants.DefaultPoolMaxBytes,
		Logging:        LoggingConfig{Level: "info"},
		Metrics:        MetricsConfig{Enabled: false, Listen: ":9465"},
	}
}

// Load reads configuration from path (optional) plus the environment, on top
// of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("serial.driver", def.Serial.Driver)
	v.SetDefault("serial.port", def.Serial.Port)
	v.SetDefault("serial.baud", def.Serial.Baud)
	v.SetDefault("serial.data_bits", def.Serial.DataBits)
	v.SetDefault("serial.parity", def.Serial.Parity)
	v.SetDefault("serial.stop_bits", def.Serial.StopBits)
	v.SetDefault("command_timeout", def.CommandTimeout.String())
	v.SetDefault("root_dir", def.RootDir)
	v.SetDefault("pool_max_bytes", def.PoolMaxBytes)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.listen", def.Metrics.Listen)

	v.SetEnvPrefix("SERCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/serclient")
		v.AddConfigPath("$HOME/.config/serclient")
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine; defaults and environment apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port must be set")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.DataBits < 5 || c.Serial.DataBits > 8 {
		return fmt.Errorf("serial.data_bits must be 5-8, got %d", c.Serial.DataBits)
	}
	switch c.Serial.Parity {
	case "none", "even", "odd":
	default:
		return fmt.Errorf("serial.parity must be none, even or odd, got %q", c.Serial.Parity)
	}
	if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits must be 1 or 2, got %d", c.Serial.StopBits)
	}
	switch c.Serial.Driver {
	case "", "serial", "raw":
	default:
		return fmt.Errorf("serial.driver must be serial or raw, got %q", c.Serial.Driver)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout)
	}
	if c.RootDir == "" {
		return fmt.Errorf("root_dir must be set")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}
