package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"mbn/pkg/codec"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/urfave/cli/v2"
	"github.com/yanun0323/errors"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the metadata and records of a container",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "Maximum number of records to print, 0 for all",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format: table, json",
			},
			&cli.BoolFlag{
				Name:  "lenient",
				Usage: "Treat a truncated final frame as end of stream",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("inspect needs exactly one file")
	}
	format := c.String("format")
	if format != "table" && format != "json" {
		return errors.Errorf("invalid format %q: must be 'table' or 'json'", format)
	}

	var opts []codec.DecoderOption
	if c.Bool("lenient") {
		opts = append(opts, codec.WithLenientTruncation())
	}
	dec, err := codec.NewDecoderFromFile(c.Args().First(), opts...)
	if err != nil {
		return err
	}
	defer dec.Close()

	out := c.App.Writer
	meta := dec.Metadata()
	if format == "table" {
		printMetadata(out, meta)
	}

	limit := c.Int("limit")
	count := 0
	for rec, err := range dec.DecodeIterator() {
		if err != nil {
			return err
		}
		count++
		if format == "json" {
			fields := record.Fields(rec)
			if meta != nil {
				if ticker, ok := meta.Mappings.Ticker(rec.Header().InstrumentID); ok {
					fields["ticker"] = ticker
				}
			}
			line, err := json.Marshal(fields)
			if err != nil {
				return errors.Wrap(err, "marshal record")
			}
			fmt.Fprintln(out, string(line))
		} else {
			fmt.Fprintln(out, formatRecord(rec, meta))
		}
		if limit > 0 && count >= limit {
			break
		}
	}
	return nil
}

func printMetadata(w io.Writer, meta *metadata.Metadata) {
	if meta == nil {
		fmt.Fprintln(w, "metadata: none")
		return
	}
	fmt.Fprintf(w, "schema:  %s\n", meta.Schema)
	fmt.Fprintf(w, "start:   %s\n", formatNanos(meta.Start))
	fmt.Fprintf(w, "end:     %s\n", formatNanos(meta.End))
	fmt.Fprintf(w, "symbols: %d\n", meta.Mappings.Len())
	for _, id := range meta.Mappings.IDs() {
		ticker, _ := meta.Mappings.Ticker(id)
		fmt.Fprintf(w, "  %6d  %s\n", id, ticker)
	}
}

func formatRecord(rec record.RecordEnum, meta *metadata.Metadata) string {
	hd := rec.Header()
	instrument := fmt.Sprintf("%d", hd.InstrumentID)
	if meta != nil {
		if ticker, ok := meta.Mappings.Ticker(hd.InstrumentID); ok {
			instrument = ticker
		}
	}

	fields := record.Fields(rec)
	keys := slices.Sorted(maps.Keys(fields))
	var sb strings.Builder
	for _, key := range keys {
		switch key {
		case "length", "rtype", "instrument_id", "ts_event":
			continue
		}
		v := fields[key]
		if px, ok := v.(int64); ok && isPriceField(key) {
			v = record.FormatPrice(px)
		}
		fmt.Fprintf(&sb, " %s=%v", key, v)
	}
	return fmt.Sprintf("%-7s %-8s %s%s", rec.RType(), instrument, formatNanos(int64(hd.TsEvent)), sb.String())
}

func isPriceField(key string) bool {
	switch key {
	case "price", "bid_px", "ask_px", "open", "high", "low", "close":
		return true
	}
	return false
}

func formatNanos(ns int64) string {
	if ns == 0 {
		return "-"
	}
	return time.Unix(0, ns).UTC().Format(time.RFC3339Nano)
}
