// main is the entry point of the Beacon master server.
// It initializes the configuration, logger, database, GeoIP provider,
// registry and sweeper, and starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cybermp/beacon/internal/config"
	"github.com/cybermp/beacon/internal/fake"
	"github.com/cybermp/beacon/internal/geoip"
	"github.com/cybermp/beacon/internal/logger"
	"github.com/cybermp/beacon/internal/registry"
	"github.com/cybermp/beacon/internal/server"
	"github.com/cybermp/beacon/internal/storage"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Msg("Starting beacon master server...")

	// GeoIP is optional: without it regions stay on the coarse heuristic
	var geoProvider *geoip.Provider
	if cfg.GeoIP.Path != "" {
		if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		provider, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country refinement disabled")
		} else {
			geoProvider = provider
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	// Database
	repo, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(repo, cfg.Storage.GenerateCount)
		return
	}

	// Write-behind persistence queue
	writer := storage.NewWriter(repo)
	writer.Start()

	// Registry
	reg := registry.New(registry.Options{
		LivenessWindow: cfg.Registry.LivenessWindow,
		ExpiryWindow:   cfg.Registry.ExpiryWindow,
		Sink:           writer,
		Region:         geoProvider.Resolve,
	})

	// Expiry sweeper
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		reg.RunSweeper(sweepCtx, cfg.Registry.SweepInterval)
		close(sweeperDone)
	}()

	// Init server
	srvHandler := server.New(reg, repo, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the sweeper and wait for it before closing the persistence
	// queue: a sweep in flight may still be enqueueing timeout events.
	stopSweeper()
	<-sweeperDone
	writer.Stop()

	log.Info().Msg("Server exited")
}
