package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mbn/internal/obs"
	"mbn/internal/recorder"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Replay capture segments in timestamp order",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Required: true,
				Usage:    "Directory holding capture segments",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Segment file prefix",
			},
			&cli.Float64Flag{
				Name:  "speed",
				Usage: "Playback speed relative to the recorded pace; 0 replays as fast as possible",
			},
			&cli.BoolFlag{
				Name:  "recv-time",
				Usage: "Pace by ts_recv instead of ts_event",
			},
			&cli.BoolFlag{
				Name:  "lenient",
				Usage: "Accept segments that end inside a frame",
			},
			&cli.BoolFlag{
				Name:  "print",
				Usage: "Print every replayed record",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve prometheus metrics on this address, e.g. :9100",
			},
		},
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	ctx, cancel := shutdownContext(c.Context)
	defer cancel()

	metrics := obs.NewMetrics()
	if addr := c.String("metrics-addr"); addr != "" {
		stop, err := serveMetrics(addr, metrics)
		if err != nil {
			return err
		}
		defer stop()
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:         c.String("dir"),
		FilePrefix:  c.String("prefix"),
		Speed:       c.Float64("speed"),
		UseRecvTime: c.Bool("recv-time"),
		Lenient:     c.Bool("lenient"),
	})
	if err != nil {
		return err
	}

	out := c.App.Writer
	printAll := c.Bool("print")
	started := time.Now()
	err = pb.WithMetrics(metrics).Run(ctx, func(meta *metadata.Metadata, rec record.RecordEnum) error {
		metrics.ObserveRecord(rec)
		if printAll {
			fmt.Fprintln(out, formatRecord(rec, meta))
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	snap := metrics.Snapshot()
	logs.Infof("replay: %d records in %s, errors %d", snap.Frames(), time.Since(started).Round(time.Millisecond), snap.Errors())
	return nil
}

func serveMetrics(addr string, metrics *obs.Metrics) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := obs.Register(reg, metrics); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("replay: metrics server stopped, err: %+v", err)
		}
	}()
	logs.Infof("replay: serving metrics on %s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
