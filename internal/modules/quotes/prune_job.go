package quotes

import (
	"time"

	"github.com/aristath/finfolio/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// PruneJob evicts in-memory quotes older than the retention window.
// Persisted quotes expire through the client data cleanup job.
type PruneJob struct {
	base.JobBase
	cache     *Cache
	retention time.Duration
	log       zerolog.Logger
}

// NewPruneJob creates a new quote prune job
func NewPruneJob(cache *Cache, retention time.Duration, log zerolog.Logger) *PruneJob {
	return &PruneJob{
		cache:     cache,
		retention: retention,
		log:       log.With().Str("job", "quote_cache_prune").Logger(),
	}
}

// Run prunes the cache
func (j *PruneJob) Run() error {
	if removed := j.cache.Prune(j.retention); removed > 0 {
		j.log.Info().Int("removed", removed).Int("remaining", j.cache.Len()).Msg("Pruned retained quotes")
	}
	return nil
}

// Name returns the job name
func (j *PruneJob) Name() string {
	return "quote_cache_prune"
}
