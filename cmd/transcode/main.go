package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/transcode"
)

func main() {
	app := &cli.App{
		Name:        "livelook-transcode",
		Usage:       "Transcode service",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config file, LIVELOOK_* environment variables override it",
			},
			&cli.StringFlag{
				Name:  "natsAddr",
				Usage: "Address to connect to NATS server, overrides nats.addr",
			},
		},
		Action: start,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func start(c *cli.Context) error {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log.Logger = log.Output(zerolog.NewConsoleWriter())
	zerolog.SetGlobalLevel(conf.Env.LogLevel())

	natsAddr := conf.Nats.Addr
	if c.IsSet("natsAddr") {
		natsAddr = c.String("natsAddr")
	}

	daemon, err := transcode.New(transcode.DaemonParams{
		NatsAddr:          natsAddr,
		OutputURLTemplate: conf.Transcode.OutputURLTemplate,
		Launcher:          transcode.NewFFmpegLauncher(conf.Transcode.FFmpegPath),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx)
}
