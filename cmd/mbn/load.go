package main

import (
	"mbn/internal/ops"
	"mbn/internal/store"
	"mbn/pkg/codec"
	"mbn/pkg/conn"

	"github.com/urfave/cli/v2"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Insert container records into postgres",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Postgres connection string, overrides the config",
			},
			&cli.IntFlag{
				Name:  "batch",
				Usage: "Rows per transaction, overrides the config",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Value: true,
				Usage: "Create or update the record tables first",
			},
		},
		Action: loadAction,
	}
}

func loadAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("load needs at least one file")
	}

	var (
		option    conn.Option
		batchSize int
	)
	if path := c.String("config"); path != "" {
		loaded, err := ops.Load(path)
		if err != nil {
			return err
		}
		option, batchSize = loaded.Store, loaded.BatchSize
	}
	if dsn := c.String("dsn"); dsn != "" {
		option.ConnString = dsn
	}
	if n := c.Int("batch"); n > 0 {
		batchSize = n
	}
	if !option.Enabled() {
		return errors.New("load needs --dsn or a store section in --config")
	}
	option.Silent = true

	ctx, cancel := shutdownContext(c.Context)
	defer cancel()

	client, err := conn.New(option)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		return err
	}

	st := store.New(client.DB(), batchSize)
	if c.Bool("migrate") {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	total := 0
	for _, path := range c.Args().Slice() {
		dec, err := codec.NewDecoderFromFile(path)
		if err != nil {
			return err
		}
		n, err := st.Load(ctx, dec)
		_ = dec.Close()
		total += n
		if err != nil {
			return errors.Wrapf(err, "load %s", path)
		}
	}
	logs.Infof("load: inserted %d rows from %d files", total, c.NArg())
	return nil
}
