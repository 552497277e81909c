package main

import (
	"fmt"
	"os"
	"slices"

	"mbn/internal/obs"
	"mbn/pkg/codec"
	"mbn/pkg/record"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/yanun0323/errors"
	"golang.org/x/sync/errgroup"
)

type fileStats struct {
	path     string
	size     int64
	schema   string
	symbols  int
	first    uint64
	last     uint64
	snapshot obs.Snapshot
	err      error
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize one or more containers",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Value:   4,
				Usage:   "Number of files decoded concurrently",
			},
			&cli.BoolFlag{
				Name:  "lenient",
				Usage: "Treat a truncated final frame as end of stream",
			},
		},
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("stats needs at least one file")
	}
	paths := c.Args().Slice()
	results := make([]fileStats, len(paths))

	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(max(c.Int("jobs"), 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = collectStats(path, c.Bool("lenient"))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := c.App.Writer
	failed := 0
	for _, st := range results {
		if st.err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", st.path, st.err)
		}
		printStats(c, st)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed to decode", failed, len(paths))
	}
	return nil
}

func collectStats(path string, lenient bool) fileStats {
	st := fileStats{path: path, schema: "-"}
	if info, err := os.Stat(path); err == nil {
		st.size = info.Size()
	}

	metrics := obs.NewMetrics()
	opts := []codec.DecoderOption{codec.WithObserver(metrics)}
	if lenient {
		opts = append(opts, codec.WithLenientTruncation())
	}
	dec, err := codec.NewDecoderFromFile(path, opts...)
	if err != nil {
		st.err = err
		return st
	}
	defer dec.Close()

	if meta := dec.Metadata(); meta != nil {
		st.schema = meta.Schema.String()
		st.symbols = meta.Mappings.Len()
	}
	for rec, err := range dec.DecodeIterator() {
		if err != nil {
			st.err = err
			break
		}
		ts := rec.Header().TsEvent
		if st.first == 0 || ts < st.first {
			st.first = ts
		}
		if ts > st.last {
			st.last = ts
		}
		metrics.ObserveRecord(rec)
	}
	st.snapshot = metrics.Snapshot()
	return st
}

func printStats(c *cli.Context, st fileStats) {
	out := c.App.Writer
	snap := st.snapshot
	fmt.Fprintf(out, "%s\n", st.path)
	fmt.Fprintf(out, "  size:    %s\n", humanize.Bytes(uint64(st.size)))
	fmt.Fprintf(out, "  schema:  %s\n", st.schema)
	fmt.Fprintf(out, "  symbols: %d\n", st.symbols)
	fmt.Fprintf(out, "  records: %s (%s)\n", humanize.Comma(int64(snap.Frames())), humanize.Bytes(snap.FrameBytes))
	fmt.Fprintf(out, "  range:   %s .. %s\n", formatNanos(int64(st.first)), formatNanos(int64(st.last)))

	rtypes := make([]record.RType, 0, len(snap.FrameCounts))
	for rtype := range snap.FrameCounts {
		rtypes = append(rtypes, rtype)
	}
	slices.Sort(rtypes)
	for _, rtype := range rtypes {
		fmt.Fprintf(out, "    %-7s %d\n", rtype, snap.FrameCounts[rtype])
	}
	if lat := snap.RecvLatency; lat.Count > 0 {
		fmt.Fprintf(out, "  recv latency: avg=%s min=%s max=%s\n", lat.Avg, lat.Min, lat.Max)
	}
}
