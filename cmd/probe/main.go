package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/isqad/livelook-bridge/internal/probe"
)

func main() {
	app := &cli.App{
		Name:        "livelook-probe",
		Usage:       "WebRTC viewer for checking a running bridge",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Value: "ws://localhost:80/ws",
				Usage: "websocket gateway URL",
			},
			&cli.BoolFlag{
				Name:  "high-profile",
				Usage: "advertise H.264 high profile support",
			},
			&cli.IntFlag{
				Name:  "screen-width",
				Usage: "advertised screen width, 0 for unknown",
			},
		},
		Action: startProbe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func startProbe(c *cli.Context) error {
	log.Logger = log.Output(zerolog.NewConsoleWriter())
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	p, err := probe.New(c.String("url"), probe.Options{
		HighProfile: c.Bool("high-profile"),
		ScreenWidth: c.Int("screen-width"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = p.Run(ctx)
	log.Info().Interface("stats", p.Stats()).Msg("probe finished")
	if errors.Is(err, probe.ErrSessionEnded) {
		return nil
	}
	return err
}
