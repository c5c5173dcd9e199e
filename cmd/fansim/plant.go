package main

import (
	"context"
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erh/viamfanpid"
)

// simConfig is the yaml file fansim reads.
type simConfig struct {
	PID viamfanpid.PIDConfig `yaml:"pid"`

	// AmbientC is the temperature the enclosure drifts back to.
	AmbientC float64 `yaml:"ambient_c"`
	InitialC float64 `yaml:"initial_c"`

	// HeatLoadC is degrees added per cycle by the heat source.
	HeatLoadC float64 `yaml:"heat_load_c"`
	// FanCoolingC is degrees removed per cycle at full fan speed.
	FanCoolingC float64 `yaml:"fan_cooling_c"`
	// Leak is the fraction of the gap to ambient closed every cycle.
	Leak float64 `yaml:"leak"`

	// FaultEvery makes every nth reading a sensor fault, 0 disables.
	FaultEvery int `yaml:"fault_every"`
}

func defaultSimConfig() simConfig {
	return simConfig{
		PID:         viamfanpid.DefaultPIDConfig(),
		AmbientC:    24,
		InitialC:    30,
		HeatLoadC:   0.1,
		FanCoolingC: 3,
		Leak:        0.02,
	}
}

func loadSimConfig(path string) (simConfig, error) {
	cfg := defaultSimConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.FaultEvery < 0 {
		return cfg, errors.New("fault_every must be >= 0")
	}
	return cfg, cfg.PID.Validate()
}

// plant is a lumped thermal mass with a heat source, a fan and leakage to ambient.
// It is both the controller's sensor and its fan.
type plant struct {
	cfg   simConfig
	temp  float64
	speed int
	reads int
}

func newPlant(cfg simConfig) *plant {
	return &plant{cfg: cfg, temp: cfg.InitialC}
}

func (p *plant) ReadTemperature(ctx context.Context) (float64, error) {
	p.reads++
	if p.cfg.FaultEvery > 0 && p.reads%p.cfg.FaultEvery == 0 {
		return viamfanpid.SensorErrorTemp, nil
	}
	return p.temp, nil
}

func (p *plant) SetSpeed(ctx context.Context, speed int) error {
	p.speed = speed
	return nil
}

// step advances the plant by one control period at the current fan speed.
func (p *plant) step() {
	cooling := p.cfg.FanCoolingC * float64(p.speed) / viamfanpid.MaxFanSpeed
	p.temp += p.cfg.HeatLoadC - cooling + p.cfg.Leak*(p.cfg.AmbientC-p.temp)
}
