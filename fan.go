package viamfanpid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/resource"
)

// Model is the fan controller, exposed as a sensor so its state shows up in Readings.
var Model = resource.ModelNamespace("erh").WithFamily("sensor").WithModel("fan-pid")

func init() {
	fanComp := resource.Registration[sensor.Sensor, *Config]{
		Constructor: func(
			ctx context.Context, deps resource.Dependencies, conf resource.Config, logger golog.Logger,
		) (sensor.Sensor, error) {
			return createFanController(deps, conf, logger)
		},
	}
	resource.RegisterComponent(sensor.API, Model, fanComp)
}

func createFanController(deps resource.Dependencies, conf resource.Config, logger golog.Logger) (*fanController, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	tempSensor, err := resource.FromDependencies[sensor.Sensor](deps, sensor.Named(newConf.Sensor))
	if err != nil {
		return nil, err
	}

	fanMotor, err := motor.FromDependencies(deps, newConf.Motor)
	if err != nil {
		return nil, err
	}

	return newFanController(
		conf.ResourceName().AsNamed(),
		newConf,
		&readingsTemperature{sensor: tempSensor, key: newConf.temperatureKey()},
		&motorFan{motor: fanMotor},
		logger,
	)
}

func newFanController(
	named resource.Named,
	cfg *Config,
	temp TemperatureReader,
	fan FanActuator,
	logger golog.Logger,
) (*fanController, error) {
	controller, err := NewController(cfg.pidConfig(), cfg.validRange(), temp, fan, logger)
	if err != nil {
		return nil, err
	}

	fc := &fanController{
		Named:      named,
		controller: controller,
		fan:        fan,
		period:     cfg.loopPeriod(),
		logger:     logger,
	}
	fc.startLoop()
	return fc, nil
}

type fanController struct {
	resource.Named
	resource.AlwaysRebuild

	controller *Controller
	fan        FanActuator
	period     time.Duration

	// mu serialises control cycles with Readings and Close.
	mu sync.Mutex

	cancel    context.CancelFunc
	waitGroup sync.WaitGroup

	logger golog.Logger
}

func (fc *fanController) startLoop() {
	var ctx context.Context
	ctx, fc.cancel = context.WithCancel(context.Background())

	fc.waitGroup.Add(1)
	go func() {
		defer fc.waitGroup.Done()

		for {
			if !utils.SelectContextOrWait(ctx, fc.period) {
				return
			}
			fc.cycle(ctx)
		}
	}()
}

func (fc *fanController) cycle(ctx context.Context) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	fc.controller.RunOnce(ctx)
}

func (fc *fanController) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	fc.mu.Lock()
	s := fc.controller.Snapshot()
	fc.mu.Unlock()

	return map[string]interface{}{
		"temperature_celsius": s.Temperature,
		"setpoint":            s.Setpoint,
		"error":               s.Error,
		"last_error":          s.LastError,
		"integral":            s.Integral,
		"output":              s.Output,
		"fan_speed":           s.FanSpeed,
		"valid":               s.Valid,
	}, nil
}

// Close stops the loop and leaves the fan off.
func (fc *fanController) Close(ctx context.Context) error {
	fc.logger.Infof("closing %s, stopping fan", fc.Name())
	if fc.cancel != nil {
		fc.cancel()
		fc.cancel = nil
		fc.waitGroup.Wait()
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.fan.SetSpeed(ctx, 0)
}

// readingsTemperature pulls one key out of a sensor's Readings.
type readingsTemperature struct {
	sensor sensor.Sensor
	key    string
}

func (rt *readingsTemperature) ReadTemperature(ctx context.Context) (float64, error) {
	readings, err := rt.sensor.Readings(ctx, nil)
	if err != nil {
		return 0, err
	}

	raw, ok := readings[rt.key]
	if !ok {
		return 0, fmt.Errorf("sensor %s has no reading %q", rt.sensor.Name(), rt.key)
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("reading %q is a %T, not a number", rt.key, raw)
	}
}

// motorFan drives a fan motor by power percentage.
type motorFan struct {
	motor motor.Motor
}

func (mf *motorFan) SetSpeed(ctx context.Context, speed int) error {
	if speed < 0 || speed > MaxFanSpeed {
		return fmt.Errorf("fan speed %d out of range [0, %d]", speed, MaxFanSpeed)
	}
	if speed == 0 {
		return mf.motor.Stop(ctx, nil)
	}

	err := mf.motor.SetPower(ctx, float64(speed)/100, nil)
	if err != nil {
		return multierr.Combine(mf.motor.Stop(ctx, nil), err)
	}
	return nil
}
