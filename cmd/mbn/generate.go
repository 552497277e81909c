package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"mbn/internal/mdg"
	"mbn/internal/ops"
	"mbn/internal/recorder"
	"mbn/internal/schema"
	"mbn/pkg/codec"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/urfave/cli/v2"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	defaultGenerateCount    = 1000
	defaultGenerateInterval = time.Second
	defaultBasePrice        = 100_000_000_000
	defaultTickSize         = 10_000_000
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Write synthetic records into a container or capture segments",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write a single container to this path",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Write rotating capture segments into this directory",
			},
			&cli.StringFlag{
				Name:  "schema",
				Usage: "Record schema, overrides the config",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of records, overrides the config",
			},
			&cli.StringFlag{
				Name:  "symbols",
				Value: "AAPL,TSLA",
				Usage: "Comma separated tickers used without a config",
			},
			&cli.Int64Flag{
				Name:  "start",
				Usage: "ts_event of the first record in UNIX nanoseconds; now when zero",
			},
		},
		Action: generateAction,
	}
}

func generateAction(c *cli.Context) error {
	out, dir := c.String("out"), c.String("dir")
	if (out == "") == (dir == "") {
		return errors.New("generate needs exactly one of --out or --dir")
	}

	loaded, err := loadGenerateConfig(c)
	if err != nil {
		return err
	}
	plan := loaded.Generator
	if plan.Count <= 0 {
		plan.Count = defaultGenerateCount
	}
	if plan.Interval <= 0 {
		plan.Interval = defaultGenerateInterval
	}
	if plan.BasePrice == 0 {
		plan.BasePrice = defaultBasePrice
	}

	gen, err := mdg.NewGenerator(loaded.Registry, plan.Schema.RType(), plan.BasePrice, plan.BaseSize, plan.Spread)
	if err != nil {
		return err
	}
	norm := mdg.NewNormalizer(loaded.Registry)

	start := time.Unix(0, c.Int64("start"))
	if c.Int64("start") == 0 {
		start = time.Now()
	}
	next := func(i int) (record.RecordEnum, error) {
		return gen.NextRecord(norm, start.Add(time.Duration(i)*plan.Interval))
	}

	if out != "" {
		meta := metadata.New(
			plan.Schema,
			start.UnixNano(),
			start.Add(time.Duration(plan.Count-1)*plan.Interval).UnixNano(),
			loaded.Registry.SymbolMap(),
		)
		if err := generateFile(out, &meta, plan.Count, next); err != nil {
			return err
		}
		logs.Infof("generate: wrote %d %s records to %s", plan.Count, plan.Schema, out)
		return nil
	}

	cfg := loaded.Recorder
	cfg.Dir = dir
	cfg.Schema = plan.Schema
	if err := generateSegments(c.Context, cfg, plan.Count, next); err != nil {
		return err
	}
	logs.Infof("generate: recorded %d %s records into %s", plan.Count, plan.Schema, dir)
	return nil
}

func loadGenerateConfig(c *cli.Context) (ops.Loaded, error) {
	var (
		loaded ops.Loaded
		err    error
	)
	if path := c.String("config"); path != "" {
		loaded, err = ops.Load(path)
		if err != nil {
			return ops.Loaded{}, err
		}
	} else {
		reg, err := tickerRegistry(c.String("symbols"))
		if err != nil {
			return ops.Loaded{}, err
		}
		loaded, err = ops.Resolve(ops.FileConfig{})
		if err != nil {
			return ops.Loaded{}, err
		}
		loaded.Registry = reg
		loaded.Recorder.Symbols = reg.SymbolMap()
	}

	if s := c.String("schema"); s != "" {
		parsed, err := record.ParseSchema(s)
		if err != nil {
			return ops.Loaded{}, err
		}
		loaded.Generator.Schema = parsed
	}
	if n := c.Int("count"); n > 0 {
		loaded.Generator.Count = n
	}
	return loaded, nil
}

func tickerRegistry(symbols string) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	venue, err := reg.AddVenue("SYNTH")
	if err != nil {
		return nil, err
	}
	for _, ticker := range strings.Split(symbols, ",") {
		ticker = strings.TrimSpace(ticker)
		if ticker == "" {
			continue
		}
		if _, err := reg.AddInstrument(schema.Instrument{
			VenueID:  venue,
			Ticker:   ticker,
			TickSize: defaultTickSize,
		}); err != nil {
			return nil, err
		}
	}
	if reg.InstrumentCount() == 0 {
		return nil, errors.New("no symbols given")
	}
	return reg, nil
}

func generateFile(path string, meta *metadata.Metadata, count int, next func(int) (record.RecordEnum, error)) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create container")
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	enc := codec.NewEncoder(buf)
	if err := enc.EncodeMetadata(meta); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		rec, err := next(i)
		if err != nil {
			return err
		}
		if err := enc.EncodeRecord(rec); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func generateSegments(ctx context.Context, cfg recorder.Config, count int, next func(int) (record.RecordEnum, error)) error {
	w, err := recorder.NewWriter(cfg)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		rec, err := next(i)
		if err != nil {
			_ = w.Close()
			return err
		}
		for {
			err := w.TryAppend(rec)
			if err == nil {
				break
			}
			if !errors.Is(err, recorder.ErrQueueFull) {
				_ = w.Close()
				return err
			}
			time.Sleep(time.Millisecond)
		}
	}
	return w.Close()
}
