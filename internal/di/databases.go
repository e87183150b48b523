// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/finfolio/internal/config"
	"github.com/aristath/finfolio/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates the databases.
// records.db is skipped when the memory store backend is selected.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. client_data.db - Upstream response cache
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    database.NameClientData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client_data database: %w", err)
	}
	container.ClientDataDB = clientDataDB

	// 2. records.db - Holdings and watchlists
	if cfg.StoreBackend != config.StoreBackendMemory {
		recordsDB, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, "records.db"),
			Profile: database.ProfileStandard,
			Name:    database.NameRecords,
		})
		if err != nil {
			clientDataDB.Close()
			return nil, fmt.Errorf("failed to initialize records database: %w", err)
		}
		container.RecordsDB = recordsDB
	}

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().
		Int("databases", len(container.Databases())).
		Str("store_backend", cfg.StoreBackend).
		Msg("Databases initialized and schemas applied")

	return container, nil
}
