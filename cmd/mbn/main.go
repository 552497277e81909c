package main

import (
	"context"
	"fmt"
	"os"

	"github.com/grafana/pyroscope-go"
	"github.com/urfave/cli/v2"
	"github.com/yanun0323/pkg/sys"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to a JSON or TOML config file",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var profiler *pyroscope.Profiler
	return &cli.App{
		Name:    "mbn",
		Usage:   "Inspect, generate, replay and load mbn market data containers",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pyroscope",
				Usage: "Pyroscope server address; profiling is off when empty",
			},
		},
		Before: func(c *cli.Context) error {
			addr := c.String("pyroscope")
			if addr == "" {
				return nil
			}
			p, err := startProfiler(addr, c.Args().First())
			if err != nil {
				return err
			}
			profiler = p
			return nil
		},
		After: func(*cli.Context) error {
			if profiler != nil {
				return profiler.Stop()
			}
			return nil
		},
		Commands: []*cli.Command{
			inspectCommand(),
			statsCommand(),
			generateCommand(),
			replayCommand(),
			loadCommand(),
		},
	}
}

func startProfiler(addr, name string) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: "mbn",
		ServerAddress:   addr,
		Tags: map[string]string{
			"command": name,
		},
		Logger: emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

// shutdownContext is cancelled on SIGINT/SIGTERM.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
