// Package config loads the monitor configuration file and manages named port
// profiles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"serialmon/pkg/link"
	"serialmon/pkg/logx"
	"serialmon/pkg/scrollback"
	"serialmon/pkg/serial"
)

// EnvPrefix prefixes environment overrides, e.g. SERIALMON_SERIAL_BAUD_RATE.
const EnvPrefix = "SERIALMON"

// Config is the top-level configuration.
type Config struct {
	Serial     serial.Config    `mapstructure:"serial" yaml:"serial"`
	Scrollback ScrollbackConfig `mapstructure:"scrollback" yaml:"scrollback"`
	Discovery  link.Candidates  `mapstructure:"discovery" yaml:"discovery"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// ScrollbackConfig sizes the output history.
type ScrollbackConfig struct {
	Lines int `mapstructure:"lines" yaml:"lines"`
}

// LoggingConfig controls the session log. The terminal UI owns the screen, so
// logs only go to a file.
type LoggingConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Serial:     serial.DefaultConfig(),
		Scrollback: ScrollbackConfig{Lines: scrollback.DefaultCapacity},
		Discovery:  link.DefaultCandidates(),
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Validate checks the values this program interprets itself. Line settings
// are left to the serial driver.
func (c Config) Validate() error {
	if c.Scrollback.Lines <= 0 {
		return fmt.Errorf("scrollback.lines must be positive, got %d", c.Scrollback.Lines)
	}
	if c.Discovery.Count < 0 {
		return fmt.Errorf("discovery.count cannot be negative")
	}
	if c.Serial.Timeout < 0 {
		return fmt.Errorf("serial.timeout cannot be negative")
	}
	if _, err := serial.ParseParity(c.Serial.Parity); err != nil {
		return fmt.Errorf("serial.parity: %w", err)
	}
	if err := logx.CheckLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "serialmon"), nil
}

// DefaultConfigPath returns DefaultDir()/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from path, or DefaultConfigPath when path is
// empty. A missing file is not an error. Environment variables prefixed with
// EnvPrefix override the file.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("serial.port", cfg.Serial.Port)
	v.SetDefault("serial.baud_rate", cfg.Serial.BaudRate)
	v.SetDefault("serial.data_bits", cfg.Serial.DataBits)
	v.SetDefault("serial.stop_bits", cfg.Serial.StopBits)
	v.SetDefault("serial.parity", cfg.Serial.Parity)
	v.SetDefault("serial.timeout", cfg.Serial.Timeout)
	v.SetDefault("scrollback.lines", cfg.Scrollback.Lines)
	v.SetDefault("discovery.prefix", cfg.Discovery.Prefix)
	v.SetDefault("discovery.first", cfg.Discovery.First)
	v.SetDefault("discovery.count", cfg.Discovery.Count)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Logging.File = expandEnv(cfg.Logging.File)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default config to path and returns the path used.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	if strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, value[2:])
		}
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}
