package clientdata

import (
	"errors"
	"fmt"

	"github.com/aristath/finfolio/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// CleanupJob deletes expired rows from every client data table. Expired quotes
// stay readable as stale fallbacks until this job removes them.
type CleanupJob struct {
	base.JobBase
	repo   *Repository
	tables []string
	log    zerolog.Logger
}

// NewCleanupJob creates a cleanup job over AllTables
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:   repo,
		tables: AllTables,
		log:    log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run sweeps each table independently; a failing table does not stop the others.
func (j *CleanupJob) Run() error {
	var errs []error
	var total int64

	for _, table := range j.tables {
		n, err := j.repo.DeleteExpired(table)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
			continue
		}
		if n > 0 {
			j.log.Debug().Str("table", table).Int64("deleted", n).Msg("Expired rows deleted")
		}
		total += n
	}

	if total > 0 {
		j.log.Info().Int64("total_deleted", total).Msg("Client data cleanup completed")
	}

	if err := errors.Join(errs...); err != nil {
		j.log.Error().Err(err).Msg("Client data cleanup failed")
		return err
	}
	return nil
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
