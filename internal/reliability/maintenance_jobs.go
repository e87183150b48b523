// Package reliability keeps the SQLite databases healthy and backed up.
package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/finfolio/internal/database"
	"github.com/aristath/finfolio/internal/scheduler/base"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds for the data directory
const (
	criticalFreeBytes = 500 << 20
	lowFreeBytes      = 5 << 30
)

// DiskUsageFunc reports free bytes for a path
type DiskUsageFunc func(path string) (free uint64, err error)

func gopsutilFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// DailyMaintenanceJob pings every database, truncates WAL files and checks
// free disk space in the data directory.
type DailyMaintenanceJob struct {
	base.JobBase
	databases []*database.DB
	dataDir   string
	diskFree  DiskUsageFunc
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		diskFree:  gopsutilFree,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, db := range j.databases {
		if err := db.QuickCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			return err
		}

		// Not critical: the next checkpoint will catch up
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Daily maintenance completed successfully")
	return nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

func (j *DailyMaintenanceJob) checkDiskSpace() error {
	free, err := j.diskFree(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	switch {
	case free < criticalFreeBytes:
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free in %s", availableGB, j.dataDir)
	case free < lowFreeBytes:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
