package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sentry-service/internal/camera"
	"sentry-service/internal/config"
	"sentry-service/internal/db"
	"sentry-service/internal/detector"
	"sentry-service/internal/engine"
	sentryhttp "sentry-service/internal/http"
	"sentry-service/internal/notify"
	"sentry-service/internal/repository"
	"sentry-service/internal/service"
	"sentry-service/internal/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	location, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("failed to load timezone")
	}

	gdb, err := db.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	mailer, err := notify.NewMailer(cfg.SMTP, location)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mailer")
	}

	repo := repository.NewIntrusionRepository(gdb)
	dispatcher := service.NewDispatcher(
		mailer,
		repo,
		cfg.Dispatch.MaxRetries,
		cfg.Dispatch.InitialBackoff,
		cfg.Dispatch.MaxBackoff,
		log.With().Str("component", "dispatcher").Logger(),
	)

	eng := engine.New(
		cfg.Detector.WatchLabels,
		cfg.Detector.ConfidenceThreshold,
		cfg.Engine.Cooldown,
		cfg.Engine.IdleGrace,
	)

	watch := watcher.New(
		camera.NewClient(cfg.Camera.SnapshotURL, cfg.Camera.Timeout),
		detector.NewClient(cfg.Detector.Endpoint, cfg.Detector.Timeout),
		eng,
		dispatcher,
		cfg.Camera.PollInterval,
		log.With().Str("component", "watcher").Logger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		watch.Run(ctx)
		close(watchDone)
	}()

	var srv *http.Server
	if cfg.HTTP.ListenAddr != "" {
		watchService := service.NewWatchService(repo, log.With().Str("component", "service").Logger())
		handler := sentryhttp.NewHandler(watchService, watch, log.With().Str("component", "http").Logger())

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		router.Use(cors.Default())
		handler.Register(router, sentryhttp.AuthMiddleware(cfg.HTTP.AuthSecret))

		srv = &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: router}
		go func() {
			log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	cancel()
	<-watchDone

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown error")
		}
	}
}
