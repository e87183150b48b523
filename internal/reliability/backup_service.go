package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/finfolio/internal/database"
	"github.com/rs/zerolog"
)

const (
	backupPrefix      = "finfolio-backup-"
	backupSuffix      = ".tar.gz"
	backupTimeLayout  = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	minBackupsToKeep  = 3
	backupFormatLevel = "1"
)

// BackupMetadata is written into every archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Format    string             `json:"format"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database snapshot inside an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo is a backup found in the object store
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots databases into a tar.gz archive and ships it to an
// object store. Only durable databases are backed up; client_data is a cache.
type BackupService struct {
	store     ObjectStore
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger
	now       func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(store ObjectStore, databases []*database.DB, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		store:     store,
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "backup").Logger(),
		now:       time.Now,
	}
}

// CreateAndUploadBackup snapshots every database and uploads the archive.
// Returns the object key.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	s.log.Info().Int("databases", len(s.databases)).Msg("Starting backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	now := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp: now,
		Format:    backupFormatLevel,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	files := make([]string, 0, len(s.databases)+1)
	for _, db := range s.databases {
		filename := db.Name() + ".db"
		dbPath := filepath.Join(stagingDir, filename)

		if err := db.SnapshotTo(ctx, dbPath); err != nil {
			return "", fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := calculateChecksum(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFilename)

	archiveName := backupPrefix + now.Format(backupTimeLayout) + backupSuffix
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile); err != nil {
		return "", err
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Msg("Backup completed successfully")

	return archiveName, nil
}

// ListBackups returns stored backups, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, backupPrefix) || !strings.HasSuffix(obj.Key, backupSuffix) {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, backupPrefix), backupSuffix)
		timestamp, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("filename", obj.Key).Msg("Failed to parse timestamp from filename")
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than retentionDays, always keeping
// the newest three. retentionDays <= 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return deleted, nil
}

func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
