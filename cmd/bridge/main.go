package main

import (
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/service"
)

func main() {
	app := &cli.App{
		Name:        "livelook-bridge",
		Usage:       "WebRTC bridge for a camera stream",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config file, LIVELOOK_* environment variables override it",
			},
			&cli.BoolFlag{
				Name:  "no-transcode",
				Usage: "never ask the transcode service, always forward the source as is",
			},
		},
		Action: startBridge,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func startBridge(c *cli.Context) error {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	db, err := sqlx.Connect("pgx", conf.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: conf.Redis.Addr,
		DB:   conf.Redis.DB,
	})
	defer rdb.Close()

	options := service.AppOptions{
		Config: conf,
		DB:     db,
		Redis:  rdb,
	}

	if !c.Bool("no-transcode") {
		nc, err := nats.Connect(conf.Nats.Addr)
		if err != nil {
			return err
		}
		defer nc.Drain()
		options.Nats = nc
	}

	return service.NewApp(options).Start()
}
