// Package main is the entry point for FinFolio, a portfolio valuation and
// watchlist service backed by the Alpha Vantage market data API.
//
// Startup order:
//  1. Load configuration from the environment (.env supported)
//  2. Build the logger
//  3. Wire databases, repositories, services and jobs via the DI container
//  4. Start the scheduler and the HTTP server
//  5. On SIGINT/SIGTERM: stop the server, then the scheduler, then close live views and databases
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/finfolio/internal/config"
	"github.com/aristath/finfolio/internal/di"
	"github.com/aristath/finfolio/internal/server"
	"github.com/aristath/finfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting FinFolio")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		DataDir:        cfg.DataDir,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Container:      container,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Websocket views are hijacked connections that Shutdown does not wait for;
	// closing the container stops them.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Scheduler.Stop()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close databases")
	}

	log.Info().Msg("Server stopped")
	if ctx.Err() == nil {
		os.Exit(1)
	}
}
