/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived component. It is built by Wire() and
 * handed to the HTTP server; nothing in the application is a package-level singleton.
 */
package di

import (
	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/clients/alphavantage"
	"github.com/aristath/finfolio/internal/database"
	"github.com/aristath/finfolio/internal/modules/portfolio"
	"github.com/aristath/finfolio/internal/modules/quotes"
	"github.com/aristath/finfolio/internal/modules/watchlist"
	"github.com/aristath/finfolio/internal/reliability"
	"github.com/aristath/finfolio/internal/scheduler"
	"github.com/aristath/finfolio/internal/storage"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	RecordsDB    *database.DB // Holdings and watchlists; nil with the memory store backend
	ClientDataDB *database.DB // Upstream response cache (quotes, overviews, searches)

	// Repositories
	RecordStore    storage.RecordStore    // Key-value records behind PositionStore and the watchlist
	ClientDataRepo *clientdata.Repository // Persistent TTL cache

	// Clients
	AlphaVantageClient *alphavantage.Client

	// Services
	QuoteCache       *quotes.Cache
	PositionStore    *portfolio.PositionStore
	ValuationEngine  *portfolio.ValuationEngine
	WatchlistService *watchlist.Service
	Synchronizer     *watchlist.Synchronizer
	Suggester        *watchlist.Suggester
	BackupService    *reliability.BackupService // nil when backups are not configured

	Scheduler *scheduler.Scheduler
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.RecordsDB, c.ClientDataDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close stops live views and closes the databases
func (c *Container) Close() error {
	if c.Synchronizer != nil {
		c.Synchronizer.Close()
	}

	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// JobInstances holds references to registered jobs for manual triggering
type JobInstances struct {
	ClientDataCleanup *clientdata.CleanupJob
	QuotePrune        *quotes.PruneJob
	BudgetReset       *scheduler.BudgetResetJob
	DailyMaintenance  *reliability.DailyMaintenanceJob
	Backup            *reliability.BackupJob // nil when backups are not configured
}
