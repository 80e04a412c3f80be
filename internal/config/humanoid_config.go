// File: internal/config/humanoid_config.go
// RandomizationConfig holds the tunables of the anti-detection layer. They are fixed
// for the duration of a session and read by every gesture the controller issues.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// RandomizationConfig is the randomization profile applied to gestures and waits.
type RandomizationConfig struct {
	MinDelay                   time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay                   time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	SwipeDistanceJitterPercent float64       `mapstructure:"swipe_distance_jitter_percent" yaml:"swipe_distance_jitter_percent"`
	PathJitterPixels           float64       `mapstructure:"path_jitter_pixels" yaml:"path_jitter_pixels"`
	PathRandomizationEnabled   bool          `mapstructure:"path_randomization_enabled" yaml:"path_randomization_enabled"`
	PathPoints                 int           `mapstructure:"path_points" yaml:"path_points"`
	TapJitterPixels            float64       `mapstructure:"tap_jitter_pixels" yaml:"tap_jitter_pixels"`
}

func setRandomizationDefaults(v *viper.Viper) {
	v.SetDefault("randomization.min_delay", "80ms")
	v.SetDefault("randomization.max_delay", "260ms")
	v.SetDefault("randomization.swipe_distance_jitter_percent", 5.0)
	v.SetDefault("randomization.path_jitter_pixels", 12.0)
	v.SetDefault("randomization.path_randomization_enabled", true)
	v.SetDefault("randomization.path_points", 20)
	v.SetDefault("randomization.tap_jitter_pixels", 3.0)
}

// DefaultRandomizationConfig returns the randomization defaults without going through viper.
func DefaultRandomizationConfig() RandomizationConfig {
	return RandomizationConfig{
		MinDelay:                   80 * time.Millisecond,
		MaxDelay:                   260 * time.Millisecond,
		SwipeDistanceJitterPercent: 5.0,
		PathJitterPixels:           12.0,
		PathRandomizationEnabled:   true,
		PathPoints:                 20,
		TapJitterPixels:            3.0,
	}
}

// Validate checks the randomization profile.
func (r *RandomizationConfig) Validate() error {
	if r.MinDelay < 0 || r.MaxDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if r.MaxDelay < r.MinDelay {
		return errors.New("max_delay must be greater than or equal to min_delay")
	}
	if r.SwipeDistanceJitterPercent < 0 || r.SwipeDistanceJitterPercent > 100 {
		return errors.New("swipe_distance_jitter_percent must be between 0 and 100")
	}
	if r.PathJitterPixels < 0 || r.TapJitterPixels < 0 {
		return errors.New("jitter pixels must not be negative")
	}
	if r.PathPoints < 0 {
		return errors.New("path_points must not be negative")
	}
	return nil
}
