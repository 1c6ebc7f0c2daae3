package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"uniperp/internal/application/usecase/watch"
	"uniperp/internal/infrastructure/config"
	"uniperp/internal/infrastructure/logger"
	"uniperp/internal/infrastructure/svc"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Setup("info")
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer func() {
		if err := sc.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}()

	service := watch.NewService(sc.BuildWatchServiceDeps())

	log.Info().
		Str("config", *configPath).
		Strs("venues", cfg.GetEnabledVenues()).
		Int("symbols", len(cfg.Symbols.List)).
		Int("snapshot_every_min", cfg.App.SnapshotEveryMin).
		Msg("uniperp started")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("watch service exited")
	}
}
