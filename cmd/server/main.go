package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/routedesk/backend/internal/ai"
	"github.com/routedesk/backend/internal/config"
	"github.com/routedesk/backend/internal/db"
	"github.com/routedesk/backend/internal/geocode"
	httpapi "github.com/routedesk/backend/internal/http"
	"github.com/routedesk/backend/internal/routing"
	"github.com/routedesk/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "routedesk-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	var adapter ai.Adapter
	if cfg.AIURL == "" {
		adapter = ai.MockAdapter{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock classification adapter")
	} else {
		adapter = ai.HTTPAdapter{BaseURL: cfg.AIURL}
	}

	var provider geocode.Provider
	if cfg.TwoGISAPIKey == "" {
		logger.Info().Msg("no 2GIS API key, geocoding runs on offline tables only")
	} else {
		provider = geocode.NewTwoGISGeocoder(cfg.TwoGISAPIKey, cfg.TwoGISURL, cfg.GeocodeMinInterval)
	}
	resolver := geocode.NewResolver(provider, geocode.ResolverConfig{Logger: logger})

	processing := &service.ProcessingService{
		Store:           store,
		AI:              adapter,
		Resolver:        resolver,
		Allocator:       routing.NewAllocator(),
		Logger:          logger,
		Workers:         cfg.ProcessWorkers,
		EquidistantKm:   cfg.EquidistantKm,
		FallbackOffices: parseFallbackOffices(cfg.FallbackOffices),
	}

	router := httpapi.Router(cfg, store, processing, resolver, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func parseFallbackOffices(raw string) [2]string {
	parts := strings.Split(raw, ",")
	out := [2]string{"Астана", "Алматы"}
	for i := 0; i < len(parts) && i < 2; i++ {
		if v := strings.TrimSpace(parts[i]); v != "" {
			out[i] = v
		}
	}
	return out
}
