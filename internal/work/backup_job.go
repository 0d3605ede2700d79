package work

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/reliability"
)

// BackupJob runs the periodic ledger backup.
type BackupJob struct {
	backups *reliability.BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name implements scheduler.Job
func (j *BackupJob) Name() string {
	return "ledger_backup"
}

// Run implements scheduler.Job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.backups.Backup(ctx)
}
