package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestSimulateSettles(t *testing.T) {
	logger := golog.NewTestLogger(t)

	res, err := simulate(context.Background(), defaultSimConfig(), 600, false, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.mean, test.ShouldAlmostEqual, 22.0, .5)
	test.That(t, res.stdDev, test.ShouldBeLessThan, .5)
	test.That(t, res.maxSpeed, test.ShouldBeGreaterThan, 0)
	test.That(t, res.maxSpeed, test.ShouldBeLessThanOrEqualTo, 99)
}

func TestSimulateWithFaults(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := defaultSimConfig()
	cfg.FaultEvery = 5

	res, err := simulate(context.Background(), cfg, 600, false, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.mean, test.ShouldAlmostEqual, 22.0, 1.5)

	_, err = simulate(context.Background(), cfg, 1, false, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlantFaults(t *testing.T) {
	cfg := defaultSimConfig()
	cfg.FaultEvery = 2
	p := newPlant(cfg)

	temp, err := p.ReadTemperature(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, temp, test.ShouldEqual, 30.0)

	temp, err = p.ReadTemperature(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, temp, test.ShouldEqual, -127.0)
}

func TestLoadSimConfig(t *testing.T) {
	cfg, err := loadSimConfig("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, defaultSimConfig())

	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	err = os.WriteFile(path, []byte(`
pid:
  kp: 2
  ki: 0.05
  setpoint: 25
  output_min: -100
  output_max: 100
  integral_max: 20
ambient_c: 35
fault_every: 10
`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg, err = loadSimConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.PID.Kp, test.ShouldEqual, 2.0)
	test.That(t, cfg.PID.Kd, test.ShouldEqual, 0.0)
	test.That(t, cfg.PID.Setpoint, test.ShouldEqual, 25.0)
	test.That(t, cfg.PID.IntegralMax, test.ShouldEqual, 20.0)
	test.That(t, cfg.AmbientC, test.ShouldEqual, 35.0)
	test.That(t, cfg.InitialC, test.ShouldEqual, 30.0)
	test.That(t, cfg.FaultEvery, test.ShouldEqual, 10)

	err = os.WriteFile(path, []byte("pid:\n  integral_max: -4\n"), 0o600)
	test.That(t, err, test.ShouldBeNil)
	_, err = loadSimConfig(path)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = loadSimConfig(filepath.Join(dir, "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}
