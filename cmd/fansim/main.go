// fansim runs the fan controller against a simulated enclosure, which is how a
// new tuning or loop period gets checked before it goes on hardware.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/edaniels/golog"
	"github.com/jessevdk/go-flags"
	"gonum.org/v1/gonum/stat"

	"github.com/erh/viamfanpid"
)

type options struct {
	Config  string `short:"c" long:"config" description:"simulation yaml file"`
	Cycles  int    `short:"n" long:"cycles" default:"600" description:"control cycles to run"`
	Verbose bool   `short:"v" long:"verbose" description:"log every cycle"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := golog.NewDevelopmentLogger("fansim")
	if err := realMain(opts, logger); err != nil {
		logger.Fatal(err)
	}
}

type result struct {
	mean, stdDev float64
	maxSpeed     int
}

func realMain(opts options, logger golog.Logger) error {
	cfg, err := loadSimConfig(opts.Config)
	if err != nil {
		return err
	}

	res, err := simulate(context.Background(), cfg, opts.Cycles, opts.Verbose, logger)
	if err != nil {
		return err
	}

	logger.Infof("setpoint: %v settled mean: %.2f stddev: %.2f max fan speed: %d",
		cfg.PID.Setpoint, res.mean, res.stdDev, res.maxSpeed)
	return nil
}

func simulate(ctx context.Context, cfg simConfig, cycles int, verbose bool, logger golog.Logger) (result, error) {
	if cycles < 2 {
		return result{}, errors.New("need at least 2 cycles")
	}

	p := newPlant(cfg)
	controller, err := viamfanpid.NewController(cfg.PID, viamfanpid.DefaultValidRange(), p, p, logger)
	if err != nil {
		return result{}, err
	}

	var res result
	temps := make([]float64, 0, cycles)
	for i := 0; i < cycles; i++ {
		controller.RunOnce(ctx)
		p.step()

		temps = append(temps, p.temp)
		if p.speed > res.maxSpeed {
			res.maxSpeed = p.speed
		}
		if verbose {
			s := controller.Snapshot()
			logger.Infof("cycle %d temp: %.2f error: %.2f integral: %.2f output: %.2f speed: %d",
				i, p.temp, s.Error, s.Integral, s.Output, p.speed)
		}
	}

	// the second half is what the loop settled to
	res.mean, res.stdDev = stat.MeanStdDev(temps[cycles/2:], nil)
	return res, nil
}
