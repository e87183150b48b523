// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/storage"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the record store and the client data cache
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	if container.RecordsDB != nil {
		container.RecordStore = storage.NewSQLiteStore(container.RecordsDB.Conn(), log)
	} else {
		log.Warn().Msg("Using in-memory record store; holdings and watchlists will not survive a restart")
		container.RecordStore = storage.NewMemoryStore()
	}

	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())

	log.Info().Msg("All repositories initialized")
	return nil
}
