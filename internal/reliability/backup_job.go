package reliability

import (
	"context"
	"time"

	"github.com/aristath/finfolio/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// BackupJob uploads a fresh backup and rotates old ones
type BackupJob struct {
	base.JobBase
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates a backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       15 * time.Minute,
		log:           log.With().Str("job", "snapshot_backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		j.log.Error().Err(err).Msg("Backup failed")
		return err
	}

	// A failed rotation leaves extra archives behind; the backup itself succeeded
	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "snapshot_backup"
}
