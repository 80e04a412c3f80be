// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger" yaml:"logger"`
	Calibration   CalibrationConfig   `mapstructure:"calibration" yaml:"calibration"`
	Randomization RandomizationConfig `mapstructure:"randomization" yaml:"randomization"`
	Session       SessionConfig       `mapstructure:"session" yaml:"session"`
	Device        DeviceConfig        `mapstructure:"device" yaml:"device"`
	Capture       CaptureConfig       `mapstructure:"capture" yaml:"capture"`
	OCR           OCRConfig           `mapstructure:"ocr" yaml:"ocr"`
	Stats         StatsConfig         `mapstructure:"stats" yaml:"stats"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// CalibrationConfig points at the persisted calibration profile.
// An empty or unreadable profile falls back to the built-in defaults.
type CalibrationConfig struct {
	ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
}

// SessionConfig tunes the control loop policies that are not part of a calibration profile.
type SessionConfig struct {
	// MaxConsecutiveFailures stops a session after N failed rows in a row. Zero disables the policy.
	MaxConsecutiveFailures int  `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	MaxRows                int  `mapstructure:"max_rows" yaml:"max_rows"`
	DetectListEnd          bool `mapstructure:"detect_list_end" yaml:"detect_list_end"`
	// FrameHashThreshold is the maximum perceptual hash distance at which two post-scroll
	// frames are considered identical without running OCR.
	FrameHashThreshold int `mapstructure:"frame_hash_threshold" yaml:"frame_hash_threshold"`
}

// Supported device kinds and OCR providers.
const (
	DeviceSerial = "serial"
	DeviceDryRun = "dryrun"

	OCRProviderVision  = "vision"
	OCRProviderCommand = "command"
)

// DeviceConfig selects and tunes the gesture/text transport.
type DeviceConfig struct {
	Kind               string        `mapstructure:"kind" yaml:"kind"` // "serial" or "dryrun"
	Port               string        `mapstructure:"port" yaml:"port"`
	BaudRate           int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	ResponseTimeout    time.Duration `mapstructure:"response_timeout" yaml:"response_timeout"`
	MinCommandInterval time.Duration `mapstructure:"min_command_interval" yaml:"min_command_interval"`
}

// CaptureConfig selects the frame source.
type CaptureConfig struct {
	Display     int    `mapstructure:"display" yaml:"display"`
	FixturePath string `mapstructure:"fixture_path" yaml:"fixture_path"`
}

// OCRConfig selects the text recognition backend.
type OCRConfig struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"` // "vision" or "command"
	Command       string        `mapstructure:"command" yaml:"command"`
	Args          []string      `mapstructure:"args" yaml:"args"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	LanguageHints []string      `mapstructure:"language_hints" yaml:"language_hints"`
}

// StatsConfig configures the statistics sink and optional session history persistence.
type StatsConfig struct {
	QueueSize   int    `mapstructure:"queue_size" yaml:"queue_size"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
	// HistoryPath is a SQLite file used for session history when no database URL is set.
	HistoryPath string `mapstructure:"history_path" yaml:"history_path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "bidrunner")
	v.SetDefault("logger.log_file", "bidrunner.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Calibration --
	v.SetDefault("calibration.profile_path", "")

	// -- Randomization --
	setRandomizationDefaults(v)

	// -- Session --
	v.SetDefault("session.max_consecutive_failures", 0)
	v.SetDefault("session.max_rows", 0)
	v.SetDefault("session.detect_list_end", true)
	v.SetDefault("session.frame_hash_threshold", 2)

	// -- Device --
	v.SetDefault("device.kind", "dryrun")
	v.SetDefault("device.port", "/dev/ttyACM0")
	v.SetDefault("device.baud_rate", 115200)
	v.SetDefault("device.response_timeout", "3s")
	v.SetDefault("device.min_command_interval", "40ms")

	// -- Capture --
	v.SetDefault("capture.display", 0)

	// -- OCR --
	v.SetDefault("ocr.provider", "vision")
	v.SetDefault("ocr.timeout", "10s")

	// -- Stats --
	v.SetDefault("stats.queue_size", 256)
	v.SetDefault("stats.history_path", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The database URL usually carries credentials; keep it out of config files.
	_ = v.BindEnv("stats.database_url", "BIDRUNNER_STATS_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Stats.DatabaseURL == "" {
		cfg.Stats.DatabaseURL = os.Getenv("BIDRUNNER_STATS_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Randomization.Validate(); err != nil {
		return fmt.Errorf("randomization configuration invalid: %w", err)
	}
	if c.Session.MaxConsecutiveFailures < 0 {
		return errors.New("session.max_consecutive_failures must not be negative")
	}
	if c.Session.MaxRows < 0 {
		return errors.New("session.max_rows must not be negative")
	}
	switch c.Device.Kind {
	case DeviceSerial:
		if c.Device.Port == "" {
			return errors.New("device.port is required for the serial device")
		}
		if c.Device.BaudRate <= 0 {
			return errors.New("device.baud_rate must be a positive integer")
		}
	case DeviceDryRun:
	default:
		return fmt.Errorf("device.kind %q is not supported", c.Device.Kind)
	}
	switch c.OCR.Provider {
	case OCRProviderVision:
	case OCRProviderCommand:
		if c.OCR.Command == "" {
			return errors.New("ocr.command is required for the command provider")
		}
	default:
		return fmt.Errorf("ocr.provider %q is not supported", c.OCR.Provider)
	}
	if c.Stats.QueueSize <= 0 {
		return errors.New("stats.queue_size must be a positive integer")
	}
	return nil
}
