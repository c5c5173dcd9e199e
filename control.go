package viamfanpid

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/edaniels/golog"
)

const (
	// SensorErrorTemp is what a DS18B20 style probe reports when the read failed.
	SensorErrorTemp = -127.0

	// MaxFanSpeed is the highest speed the fan is ever commanded to.
	MaxFanSpeed = 99

	defaultValidMinC = -50.0
	defaultValidMaxC = 100.0
)

var errInvalidTemperature = errors.New("invalid temperature")

// TemperatureReader returns the current temperature in celsius.
type TemperatureReader interface {
	ReadTemperature(ctx context.Context) (float64, error)
}

// FanActuator sets the fan speed, 0 (off) to MaxFanSpeed.
type FanActuator interface {
	SetSpeed(ctx context.Context, speed int) error
}

// ValidRange is the span of temperatures that are believed. Anything outside it
// is treated as a sensor fault.
type ValidRange struct {
	Min, Max float64
}

// DefaultValidRange is -50 to 100 celsius.
func DefaultValidRange() ValidRange {
	return ValidRange{Min: defaultValidMinC, Max: defaultValidMaxC}
}

// Snapshot is a copy of the controller state after the last cycle.
type Snapshot struct {
	Setpoint    float64
	Temperature float64
	Error       float64
	LastError   float64
	Integral    float64
	Output      float64
	FanSpeed    int

	// Valid is false when the last cycle rejected the reading.
	Valid bool
}

// Controller runs the temperature control cycle. It is not safe for concurrent
// use; the owner has to serialise calls to RunOnce.
type Controller struct {
	pid   pidState
	valid ValidRange

	sensor TemperatureReader
	fan    FanActuator
	logger golog.Logger

	lastTemp  float64
	lastSpeed int
	lastValid bool
}

// NewController initializes the PID state from cfg.
func NewController(
	cfg PIDConfig,
	valid ValidRange,
	sensor TemperatureReader,
	fan FanActuator,
	logger golog.Logger,
) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if valid.Min > valid.Max {
		return nil, fmt.Errorf("valid temperature range is empty: [%v, %v]", valid.Min, valid.Max)
	}
	if sensor == nil || fan == nil {
		return nil, errors.New("controller needs a temperature sensor and a fan")
	}

	c := &Controller{
		valid:  valid,
		sensor: sensor,
		fan:    fan,
		logger: logger,
	}
	c.pid.init(cfg)
	return c, nil
}

// RunOnce runs a single control cycle. On a bad reading the fan is stopped and the
// PID state is left alone until a good reading comes in.
func (c *Controller) RunOnce(ctx context.Context) {
	temp, err := c.readTemperature(ctx)
	if err != nil {
		c.logger.Warnf("stopping fan: %v", err)
		c.lastValid = false
		c.setSpeed(ctx, 0)
		return
	}

	c.lastTemp = temp
	c.lastValid = true
	output := c.pid.update(temp)

	speed := speedForOutput(output)
	c.logger.Debugf("temp: %v error: %v integral: %v output: %v speed: %v",
		temp, c.pid.error, c.pid.integral, output, speed)
	c.setSpeed(ctx, speed)
}

func (c *Controller) readTemperature(ctx context.Context) (float64, error) {
	temp, err := c.sensor.ReadTemperature(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidTemperature, err)
	}
	if temp == SensorErrorTemp || math.IsNaN(temp) {
		return 0, fmt.Errorf("%w: sensor fault reading %v", errInvalidTemperature, temp)
	}
	if temp < c.valid.Min || temp > c.valid.Max {
		return 0, fmt.Errorf("%w: %v outside [%v, %v]", errInvalidTemperature, temp, c.valid.Min, c.valid.Max)
	}
	return temp, nil
}

func (c *Controller) setSpeed(ctx context.Context, speed int) {
	c.lastSpeed = speed
	if err := c.fan.SetSpeed(ctx, speed); err != nil {
		c.logger.Warnf("cannot set fan speed to %d: %v", speed, err)
	}
}

// Snapshot returns the state left by the last cycle.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Setpoint:    c.pid.cfg.Setpoint,
		Temperature: c.lastTemp,
		Error:       c.pid.error,
		LastError:   c.pid.lastError,
		Integral:    c.pid.integral,
		Output:      c.pid.output,
		FanSpeed:    c.lastSpeed,
		Valid:       c.lastValid,
	}
}

// speedForOutput maps the PID output onto the fan. The fan can only cool, so only a
// negative output (too hot) spins it.
func speedForOutput(output float64) int {
	if output >= 0 {
		return 0
	}
	speed := math.Round(-output)
	if speed > MaxFanSpeed {
		return MaxFanSpeed
	}
	return int(speed)
}
