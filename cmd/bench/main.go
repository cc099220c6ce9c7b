package main

import (
	"github.com/denisschmidt/localstore/config"
	"github.com/denisschmidt/localstore/constants"
	"github.com/denisschmidt/localstore/internal/stats"
	"github.com/denisschmidt/localstore/internal/store/backends"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"os"
)

var (
	configFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "path to a json, yaml or toml config file",
		EnvVar: "LOCALSTORE_CONFIG",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "override the configured backend (sqlite or bolt)",
	}
	pathFlag = cli.StringFlag{
		Name:  "path",
		Usage: "override the database file of the selected backend",
	}
	keepFlag = cli.BoolFlag{
		Name:  "keep",
		Usage: "leave the benchmarked records in the store",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "localstore-bench"
	app.Usage = "time writing and reading files through the record store"
	app.ArgsUsage = "FILE..."
	app.Version = constants.Version
	app.Flags = []cli.Flag{configFlag, backendFlag, pathFlag, keepFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("benchmark failed")
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("at least one file is required", 2)
	}

	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if backend := c.String(backendFlag.Name); backend != "" {
		cfg.Backend = backend
	}
	if path := c.String(pathFlag.Name); path != "" {
		if cfg.Backend == config.BackendBolt {
			cfg.BoltPath = path
		} else {
			cfg.DBPath = path
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := backends.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stat := stats.NewStatistic()
	defer stat.Close()

	b := &bench{
		store: stats.InstrumentStore(st, stat),
		keep:  c.Bool(keepFlag.Name),
	}

	results, err := b.run(c.Args(), os.Stdout)
	if err != nil {
		return err
	}

	printAverages(os.Stdout, stat.GatherData())
	log.WithFields(log.Fields{
		"backend": cfg.Backend,
		"files":   len(results),
	}).Info("benchmark finished")

	return nil
}
