package viamfanpid

import (
	"fmt"
	"time"

	"go.viam.com/utils"
)

const (
	defaultTemperatureKey = "temperature_celsius"
	defaultLoopPeriod     = time.Second
)

// Config is the attribute block of the fan-pid model.
type Config struct {
	Sensor string `json:"sensor"`
	Motor  string `json:"motor"`

	// TemperatureKey is the Readings key holding the temperature.
	TemperatureKey string `json:"temperature_key,omitempty"`

	// LoopPeriodMS is how often the control cycle runs. The integral gain is tuned
	// per cycle, so changing this means retuning ki.
	LoopPeriodMS int `json:"loop_period_ms,omitempty"`

	ValidMinC *float64 `json:"valid_min_c,omitempty"`
	ValidMaxC *float64 `json:"valid_max_c,omitempty"`

	PID *PIDConfig `json:"pid,omitempty"`
}

// Validate returns the sensor and motor as implicit dependencies.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Sensor == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "sensor")
	}
	if cfg.Motor == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "motor")
	}
	if cfg.LoopPeriodMS < 0 {
		return nil, utils.NewConfigValidationError(path, fmt.Errorf("loop_period_ms must be positive, got %d", cfg.LoopPeriodMS))
	}
	if r := cfg.validRange(); r.Min > r.Max {
		return nil, utils.NewConfigValidationError(path, fmt.Errorf("valid_min_c (%v) is greater than valid_max_c (%v)", r.Min, r.Max))
	}
	if err := cfg.pidConfig().Validate(); err != nil {
		return nil, utils.NewConfigValidationError(path, err)
	}
	return []string{cfg.Sensor, cfg.Motor}, nil
}

func (cfg *Config) temperatureKey() string {
	if cfg.TemperatureKey == "" {
		return defaultTemperatureKey
	}
	return cfg.TemperatureKey
}

func (cfg *Config) loopPeriod() time.Duration {
	if cfg.LoopPeriodMS == 0 {
		return defaultLoopPeriod
	}
	return time.Duration(cfg.LoopPeriodMS) * time.Millisecond
}

func (cfg *Config) validRange() ValidRange {
	r := DefaultValidRange()
	if cfg.ValidMinC != nil {
		r.Min = *cfg.ValidMinC
	}
	if cfg.ValidMaxC != nil {
		r.Max = *cfg.ValidMaxC
	}
	return r
}

func (cfg *Config) pidConfig() PIDConfig {
	if cfg.PID == nil {
		return DefaultPIDConfig()
	}
	return *cfg.PID
}
