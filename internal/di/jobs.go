// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/config"
	"github.com/aristath/finfolio/internal/modules/quotes"
	"github.com/aristath/finfolio/internal/reliability"
	"github.com/aristath/finfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// Cron schedules (6-field, with seconds)
const (
	scheduleQuotePrune        = "0 0 * * * *"  // hourly
	scheduleBudgetReset       = "0 0 0 * * *"  // midnight
	scheduleDailyMaintenance  = "0 0 2 * * *"  // 02:00
	scheduleClientDataCleanup = "0 15 2 * * *" // 02:15
)

type jobRegistration struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the background jobs and registers them with the scheduler.
// Returns JobInstances for manual triggering.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container and scheduler cannot be nil")
	}

	instances := &JobInstances{
		ClientDataCleanup: clientdata.NewCleanupJob(container.ClientDataRepo, log),
		QuotePrune:        quotes.NewPruneJob(container.QuoteCache, cfg.QuoteRetention, log),
		BudgetReset:       scheduler.NewBudgetResetJob(container.AlphaVantageClient, log),
		DailyMaintenance:  reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log),
	}

	registrations := []jobRegistration{
		{scheduleQuotePrune, instances.QuotePrune},
		{scheduleBudgetReset, instances.BudgetReset},
		{scheduleDailyMaintenance, instances.DailyMaintenance},
		{scheduleClientDataCleanup, instances.ClientDataCleanup},
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		registrations = append(registrations, jobRegistration{cfg.Backup.Schedule, instances.Backup})
	}

	for _, reg := range registrations {
		if err := container.Scheduler.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", reg.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(registrations)).Msg("Jobs registered")
	return instances, nil
}
