package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggrandes/jupdate53/internal/app"
	"github.com/ggrandes/jupdate53/internal/config"

	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	log = log.Level(cfg.LogLevel)

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("app error")
	}
}
