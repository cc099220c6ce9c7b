package main

import (
	"context"
	"github.com/denisschmidt/localstore/config"
	"github.com/denisschmidt/localstore/constants"
	"github.com/denisschmidt/localstore/internal/auth"
	"github.com/denisschmidt/localstore/internal/server"
	"github.com/denisschmidt/localstore/internal/store/backends"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"os"
	"os/signal"
	"syscall"
)

var configFlag = cli.StringFlag{
	Name:   "config",
	Usage:  "path to a json, yaml or toml config file",
	EnvVar: "LOCALSTORE_CONFIG",
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := cli.NewApp()
	app.Name = "localstore"
	app.Usage = "keep files in a local record store"
	app.Version = constants.Version
	app.Flags = []cli.Flag{configFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("localstore stopped")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	authenticator, err := auth.New(cfg.SecretKey)
	if err != nil {
		log.WithError(err).Error("secret_key must be set")
		return err
	}

	st, err := backends.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Error("failed to close store")
		}
	}()

	s, err := server.New(cfg, st, &authenticator)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version": constants.Version,
		"backend": cfg.Backend,
		"port":    cfg.Port,
	}).Info("starting localstore")

	return s.Run(ctx)
}
