package viamfanpid

import (
	"errors"
	"fmt"
	"math"
)

// PIDConfig holds the gains, setpoint and saturation bounds of the controller.
//
// The integral is accumulated once per cycle without a time step, so ki is only
// meaningful for the loop period it was tuned at.
type PIDConfig struct {
	Kp       float64 `json:"kp" yaml:"kp"`
	Ki       float64 `json:"ki" yaml:"ki"`
	Kd       float64 `json:"kd" yaml:"kd"`
	Setpoint float64 `json:"setpoint" yaml:"setpoint"`

	OutputMin   float64 `json:"output_min" yaml:"output_min"`
	OutputMax   float64 `json:"output_max" yaml:"output_max"`
	IntegralMax float64 `json:"integral_max" yaml:"integral_max"`
}

// DefaultPIDConfig returns the stock fan tuning.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{
		Kp:          1.0,
		Ki:          0.1,
		Kd:          0,
		Setpoint:    22,
		OutputMin:   -100,
		OutputMax:   100,
		IntegralMax: 50,
	}
}

// Validate checks the bounds are usable.
func (cfg PIDConfig) Validate() error {
	for name, v := range map[string]float64{
		"kp": cfg.Kp, "ki": cfg.Ki, "kd": cfg.Kd, "setpoint": cfg.Setpoint,
		"output_min": cfg.OutputMin, "output_max": cfg.OutputMax, "integral_max": cfg.IntegralMax,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("pid %s must be finite, got %v", name, v)
		}
	}
	if cfg.IntegralMax < 0 {
		return errors.New("pid integral_max must be >= 0")
	}
	if cfg.OutputMin > cfg.OutputMax {
		return fmt.Errorf("pid output_min (%v) is greater than output_max (%v)", cfg.OutputMin, cfg.OutputMax)
	}
	return nil
}

type pidState struct {
	// config
	cfg PIDConfig

	// state
	error     float64
	lastError float64
	integral  float64
	output    float64
}

func (pid *pidState) init(cfg PIDConfig) {
	pid.cfg = cfg

	pid.error = 0
	pid.lastError = 0
	pid.integral = 0
	pid.output = 0
}

// update runs one fixed-period PID step against the measured value.
func (pid *pidState) update(measured float64) float64 {
	pid.lastError = pid.error
	pid.error = pid.cfg.Setpoint - measured

	pid.integral = clamp(pid.integral+pid.error, -pid.cfg.IntegralMax, pid.cfg.IntegralMax)

	p := pid.cfg.Kp * pid.error
	i := pid.cfg.Ki * pid.integral
	d := pid.cfg.Kd * (pid.error - pid.lastError)

	n := p + i + d
	if math.IsNaN(n) {
		// finite gains can still overflow into Inf-Inf
		n = 0
	}
	pid.output = clamp(n, pid.cfg.OutputMin, pid.cfg.OutputMax)
	return pid.output
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
