package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gardenshop-tracker/config"
	"gardenshop-tracker/internal/api"
	"gardenshop-tracker/internal/db"
	"gardenshop-tracker/internal/notification"
	"gardenshop-tracker/internal/scraper"
	"gardenshop-tracker/internal/store"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Reports go to stdout, so diagnostics stay on stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}

	levelName := cfg.Log.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		levelName = env
	}
	if level, err := zerolog.ParseLevel(levelName); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", levelName).Msg("unknown log level; keeping info")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	appStore := store.NewGormStore(gormDB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var webpushOptions *webpush.Options
	var dispatcher scraper.Dispatcher
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			log.Fatal().Msg("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions)
		pool.Start(ctx)
		dispatcher = pool
	}

	svc, err := scraper.NewService(cfg, scraper.NewClient(cfg.Scraper), appStore, dispatcher, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create poll loop")
	}

	var server *http.Server
	if cfg.Server.Enabled {
		router := api.NewRouter(cfg.Server, appStore, webpushOptions)
		server = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.NewHandlerWithCORS(cfg.Server, router),
		}
		go func() {
			log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("HTTP server ListenAndServe")
			}
		}()
	}

	svc.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown")
		}
	}

	fmt.Fprintln(os.Stdout, "Stopped by user.")
}
