package main

import (
	"context"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"

	"github.com/niper/niper-map/internal/pkg/application"
	"github.com/niper/niper-map/internal/pkg/application/regions"
	"github.com/niper/niper-map/internal/pkg/application/services"
	"github.com/niper/niper-map/internal/pkg/domain"
	"github.com/niper/niper-map/internal/pkg/infrastructure/config"
	"github.com/niper/niper-map/internal/pkg/infrastructure/logging"
	"github.com/niper/niper-map/internal/pkg/infrastructure/repositories/defaults"
	"github.com/niper/niper-map/internal/pkg/infrastructure/repositories/storage"
)

func main() {

	serviceName := "niper-map"

	cfg, err := config.Load()
	if err != nil {
		panic(err.Error())
	}

	logger := logging.NewLogger(serviceName, cfg.Log.Level, cfg.Log.JSON)

	logger.Info().Msg("starting up ...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.Open(ctx, cfg.Storage.Settings(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer db.Close()

	bundled, err := defaults.Load(cfg.Defaults.URL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load default regions")
	}

	store := regions.NewStore(db, bundled,
		regions.WithKey(cfg.Storage.Key),
		regions.WithLogger(logger),
		regions.WithCorruptFallback(cfg.Storage.OnCorrupt == "defaults"),
	)

	if _, err = store.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load regions")
	}

	var publisher application.TopicPublisher

	if cfg.Messaging.Enabled {
		messenger, err := messaging.Initialize(messaging.LoadConfiguration(serviceName, logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize messaging")
		}
		defer messenger.Close()
		publisher = messenger
	}

	events := application.NewRegionEvents(publisher, logger)

	fallback := domain.Point{Lat: cfg.Geocoder.FallbackLat, Lng: cfg.Geocoder.FallbackLng}
	mcs := services.NewMapCenterService(logger, cfg.Geocoder.URL, cfg.Geocoder.Query, fallback, cfg.Geocoder.Refresh)
	defer mcs.Shutdown()

	err = application.CreateRouterAndStartServing(store, events, mcs, cfg.Server.Port, logger)
	logger.Fatal().Err(err).Msg("server stopped")
}
