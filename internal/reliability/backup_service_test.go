package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/finfolio/internal/database"
	testutil "github.com/aristath/finfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	modified  map[string]time.Time
	deleteErr error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: make(map[string][]byte), modified: make(map[string]time.Time)}
}

func (m *memoryObjectStore) Upload(ctx context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.modified[key] = time.Now()
	return nil
}

func (m *memoryObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data)), LastModified: m.modified[key]})
		}
	}
	return out, nil
}

func (m *memoryObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryObjectStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = content
	}
	return files
}

func TestCreateAndUploadBackup(t *testing.T) {
	db := testutil.NewTestDB(t, database.NameRecords)
	_, err := db.Conn().Exec(`INSERT INTO records (key, value, updated_at) VALUES ('holding/u1/AAPL', x'7b7d', 0)`)
	require.NoError(t, err)

	store := newMemoryObjectStore()
	svc := NewBackupService(store, []*database.DB{db}, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 3, 30, 0, 0, time.UTC) }

	key, err := svc.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finfolio-backup-2024-03-01-033000.tar.gz", key)

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, "records.db")
	require.Contains(t, files, "backup-metadata.json")
	assert.True(t, bytes.HasPrefix(files["records.db"], []byte("SQLite format 3")))

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 1)
	assert.Equal(t, "records", metadata.Databases[0].Name)
	assert.Equal(t, int64(len(files["records.db"])), metadata.Databases[0].SizeBytes)
	assert.True(t, strings.HasPrefix(metadata.Databases[0].Checksum, "sha256:"))
}

func TestRotateOldBackups_KeepsNewestThree(t *testing.T) {
	store := newMemoryObjectStore()
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	for _, daysAgo := range []int{1, 20, 30, 40, 50} {
		key := backupPrefix + now.AddDate(0, 0, -daysAgo).Format(backupTimeLayout) + backupSuffix
		require.NoError(t, store.Upload(context.Background(), key, strings.NewReader("x")))
	}
	require.NoError(t, store.Upload(context.Background(), "unrelated.txt", strings.NewReader("x")))

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	deleted, err := svc.RotateOldBackups(context.Background(), 14)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, int64(24), backups[0].AgeHours)
	assert.Contains(t, store.keys(), "unrelated.txt")
}

func TestRotateOldBackups_ZeroRetentionKeepsAll(t *testing.T) {
	store := newMemoryObjectStore()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		key := backupPrefix + now.AddDate(0, 0, -100-i).Format(backupTimeLayout) + backupSuffix
		require.NoError(t, store.Upload(context.Background(), key, strings.NewReader("x")))
	}

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	deleted, err := svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 5)
}

func TestBackupJob_RotationFailureIsNotFatal(t *testing.T) {
	db := testutil.NewTestDB(t, database.NameRecords)
	store := newMemoryObjectStore()
	store.deleteErr = errors.New("access denied")

	svc := NewBackupService(store, []*database.DB{db}, t.TempDir(), zerolog.Nop())
	job := NewBackupJob(svc, 1, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, "snapshot_backup", job.Name())
	assert.Len(t, store.keys(), 1)
}
