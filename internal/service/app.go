package service

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/admin"
	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus"
	"github.com/isqad/livelook-bridge/internal/forwarder"
	"github.com/isqad/livelook-bridge/internal/media"
	"github.com/isqad/livelook-bridge/internal/rtc"
	"github.com/isqad/livelook-bridge/internal/transcode"
)

// AppOptions is options of the bridge application
type AppOptions struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	// Nats may be nil, the bridge then never transcodes
	Nats *nats.Conn
}

// App bridges the configured camera to every client joining over the eventbus
type App struct {
	AppOptions
}

func NewApp(options AppOptions) *App {
	return &App{options}
}

func (app *App) Start() error {
	quit := make(chan os.Signal, 1)
	done := make(chan struct{}, 1)

	app.initLogger()

	bus := eventbus.RedisPubSub(app.Redis)
	repo := core.NewSessionsRepository(app.DB)

	manager, err := NewSessionsManager(SessionsManagerParams{
		Config:    app.Config,
		Publisher: bus,
		Source:    media.NewStaticSource(app.Config.Bridge.Source),
		Forwarder: app.trackForwarder(),
		Sessions:  repo,
	})
	if err != nil {
		return err
	}

	router, err := eventbus.NewRouter(bus)
	if err != nil {
		return err
	}
	manager.Bind(router)
	<-router.Start()

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	server := &http.Server{
		Addr:              app.Config.HTTP.MetricsAddress,
		Handler:           app.initRouter(repo, manager),
		ReadHeaderTimeout: 1 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Warn().Msg("received signal to terminate the bridge")
		<-router.Stop()
		manager.Shutdown()
		log.Info().Msg("all sessions are stopped")
		close(done)
	})

	go func() {
		<-quit
		log.Warn().Msg("the bridge is going shutting down")

		waitIdleConnCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(waitIdleConnCtx); err != nil {
			log.Fatal().Err(err).Msg("can't gracefully shutdown the server")
		}
	}()

	log.Info().Str("address", app.Config.HTTP.MetricsAddress).Msg("start bridge")
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server has been closed immediatelly")
	}

	<-done
	log.Info().Msg("bridge stopped")

	return nil
}

func (app *App) trackForwarder() *rtc.TrackForwarder {
	bridgeConf := app.Config.Bridge
	params := rtc.TrackForwarderParams{
		Starter: forwarder.NewStarter(
			bridgeConf.FFmpegPath,
			forwarder.NewPortsAllocator(bridgeConf.ForwarderPortRangeStart, bridgeConf.ForwarderPortRangeEnd),
		),
		MaxCompatibilityMode: bridgeConf.MaximumCompatibilityMode,
		VideoPacketSize:      bridgeConf.VideoPacketSize,
	}
	if app.Nats != nil {
		timeout := time.Duration(app.Config.Transcode.StartTimeout) * time.Millisecond
		params.Transcoder = transcode.NewClient(app.Nats, timeout)
	}

	return rtc.NewTrackForwarder(params)
}

func (app *App) initLogger() {
	cw := zerolog.NewConsoleWriter()
	log.Logger = log.Output(cw)

	zerolog.SetGlobalLevel(app.Config.Env.LogLevel())
}

func (app *App) initRouter(repo admin.SessionsReader, manager *SessionsManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/admin", admin.NewApp(repo, manager).Router())

	return r
}
