package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/database"
)

const (
	backupPrefix = "ledger-backup-"
	backupSuffix = ".db.gz"

	// Never rotate below this many backups, whatever the retention says.
	minBackupsToKeep = 3
)

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService uploads gzip compressed copies of the ledger database and
// rotates old ones. The ledger is the audit trail; the portfolio database
// can be rebuilt from upstream state, so only the ledger is backed up.
type BackupService struct {
	ledger    *database.DB
	store     ObjectStore
	retention int
	log       zerolog.Logger
}

// NewBackupService creates a new ledger backup service
func NewBackupService(ledger *database.DB, store ObjectStore, retention int, log zerolog.Logger) *BackupService {
	return &BackupService{
		ledger:    ledger,
		store:     store,
		retention: retention,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Backup checkpoints the ledger WAL, compresses the database file and
// uploads it under a timestamped key, then rotates old backups.
func (s *BackupService) Backup(ctx context.Context) error {
	start := time.Now()

	// TRUNCATE folds the WAL into the main file so the copy is complete.
	if err := s.ledger.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("failed to checkpoint ledger: %w", err)
	}

	file, err := os.Open(s.ledger.Path())
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer file.Close()

	key := fmt.Sprintf("%s%s%s", backupPrefix, start.UTC().Format("2006-01-02-150405"), backupSuffix)

	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		if _, err := io.Copy(gz, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := gz.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	if err := s.store.Upload(ctx, key, pr); err != nil {
		return err
	}

	s.log.Info().
		Str("key", key).
		Dur("duration", time.Since(start)).
		Msg("Ledger backup uploaded")

	return s.rotate(ctx)
}

// ListBackups returns stored backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		if !strings.HasPrefix(key, backupPrefix) || !strings.HasSuffix(key, backupSuffix) {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(key, backupPrefix), backupSuffix)
		ts, err := time.Parse("2006-01-02-150405", stamp)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Unparseable backup key, skipping")
			continue
		}

		info := BackupInfo{Key: key, Timestamp: ts}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// rotate keeps the newest `retention` backups (at least minBackupsToKeep)
// and deletes the rest. retention <= 0 keeps everything.
func (s *BackupService) rotate(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}

	keep := s.retention
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= keep {
		return nil
	}

	for _, backup := range backups[keep:] {
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("key", backup.Key).Msg("Deleted old backup")
	}

	return nil
}
