// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/finfolio/internal/clients/alphavantage"
	"github.com/aristath/finfolio/internal/config"
	"github.com/aristath/finfolio/internal/database"
	"github.com/aristath/finfolio/internal/modules/portfolio"
	"github.com/aristath/finfolio/internal/modules/quotes"
	"github.com/aristath/finfolio/internal/modules/watchlist"
	"github.com/aristath/finfolio/internal/reliability"
	"github.com/aristath/finfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services in dependency order
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	if cfg.AlphaVantageAPIKey == "" {
		log.Warn().Msg("ALPHAVANTAGE_API_KEY is not set; quote lookups will fail")
	}
	container.AlphaVantageClient = alphavantage.NewClient(
		cfg.AlphaVantageAPIKey,
		log,
		alphavantage.WithBaseURL(cfg.AlphaVantageBaseURL),
		alphavantage.WithDailyLimit(cfg.AlphaVantageDailyLimit),
		alphavantage.WithTimeout(cfg.QuoteFetchTimeout),
	)

	// Quote cache (shared by valuation and the watchlist synchronizer)
	container.QuoteCache = quotes.NewCache(quotes.Config{
		TTL:          cfg.QuoteCacheTTL,
		FetchTimeout: cfg.QuoteFetchTimeout,
		Retention:    cfg.QuoteRetention,
	}, container.ClientDataRepo, log)

	// Portfolio
	container.PositionStore = portfolio.NewPositionStore(container.RecordStore, log)
	container.ValuationEngine = portfolio.NewValuationEngine(
		container.PositionStore,
		container.QuoteCache,
		container.AlphaVantageClient,
		cfg.ValuationConcurrency,
		log,
	)

	// Watchlist
	container.WatchlistService = watchlist.NewService(
		container.RecordStore,
		container.AlphaVantageClient,
		container.ClientDataRepo,
		cfg.QuoteFetchTimeout,
		log,
	)
	container.Synchronizer = watchlist.NewSynchronizer(
		container.WatchlistService,
		container.QuoteCache,
		container.AlphaVantageClient,
		cfg.WatchlistPollInterval,
		cfg.ValuationConcurrency,
		log,
	)
	container.WatchlistService.AddRemovalListener(container.Synchronizer)
	container.Suggester = watchlist.NewSuggester(
		container.AlphaVantageClient,
		container.ClientDataRepo,
		cfg.SuggestionQuietWindow,
		cfg.QuoteFetchTimeout,
		log,
	)

	// Backups (optional). client_data.db is a cache and is never backed up.
	switch {
	case !cfg.Backup.Enabled():
	case container.RecordsDB == nil:
		log.Warn().Msg("Backups are configured but the memory store backend has nothing durable to back up")
	default:
		store, err := reliability.NewS3ObjectStore(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			store,
			[]*database.DB{container.RecordsDB},
			cfg.DataDir,
			log,
		)
	}

	container.Scheduler = scheduler.New(log)

	log.Info().Msg("All services initialized")
	return nil
}
