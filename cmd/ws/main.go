package main

import (
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/eventbus"
	"github.com/isqad/livelook-bridge/internal/ws"
)

func main() {
	app := &cli.App{
		Name:        "livelook-ws",
		Usage:       "Websocket signaling gateway",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config file, LIVELOOK_* environment variables override it",
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen IP and port, example: ':80' for listen on 0.0.0.0:80, overrides http.address",
			},
		},
		Action: startWs,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func startWs(c *cli.Context) error {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	address := conf.HTTP.Address
	if c.IsSet("address") {
		address = c.String("address")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: conf.Redis.Addr,
		DB:   conf.Redis.DB,
	})
	defer rdb.Close()

	bus := eventbus.RedisPubSub(rdb)

	wsApp := ws.New(ws.WsAppOptions{
		Address:       address,
		Env:           conf.Env,
		SessionSecret: conf.HTTP.SessionSecret,
		Publisher:     bus,
		Subscriber:    bus,
	})

	return wsApp.Start()
}
