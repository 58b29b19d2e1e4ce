package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qrattend/internal/cloudinary"
	"qrattend/internal/metrics"
	"qrattend/internal/queue"
)

type fakeUploader struct {
	mu       sync.Mutex
	calls    []string
	data     []byte
	publicID string
	err      error
}

func (f *fakeUploader) UploadRaw(_ context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filename)
	f.data = data
	f.publicID = publicID
	if f.err != nil {
		return nil, f.err
	}
	return &cloudinary.UploadResult{PublicID: publicID, SecureURL: "https://cdn.example/" + filename}, nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeBackup(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance_DBMS_backup_20240301_103015.csv")
	require.NoError(t, os.WriteFile(path, []byte("Roll,Name,Date,Time\n"), 0o644))
	return path
}

func TestHandleUploads(t *testing.T) {
	path := writeBackup(t)
	up := &fakeUploader{}
	a := New(queue.NewInMemory(1), up, zap.NewNop(), nil)

	url, err := a.Handle(context.Background(), queue.BackupJob{Path: path, Rows: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/attendance_DBMS_backup_20240301_103015.csv", url)
	assert.Equal(t, "attendance_DBMS_backup_20240301_103015", up.publicID)
	assert.Equal(t, "Roll,Name,Date,Time\n", string(up.data))
}

func TestRunCountsSkippedWithoutUploader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(1)
	results := metrics.New(prometheus.NewRegistry()).Backups
	msg, err := queue.NewBackupMessage(queue.BackupJob{Path: writeBackup(t)})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	go func() { _ = New(q, nil, zap.NewNop(), results).Run(ctx) }()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(results.WithLabelValues(ResultSkipped)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHandleWithoutUploaderSkips(t *testing.T) {
	a := New(queue.NewInMemory(1), nil, nil, nil)
	url, err := a.Handle(context.Background(), queue.BackupJob{Path: "/does/not/matter.csv"})
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestHandleErrors(t *testing.T) {
	up := &fakeUploader{}
	a := New(queue.NewInMemory(1), up, zap.NewNop(), nil)
	_, err := a.Handle(context.Background(), queue.BackupJob{Path: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
	assert.Zero(t, up.count())

	up.err = errors.New("boom")
	_, err = a.Handle(context.Background(), queue.BackupJob{Path: writeBackup(t)})
	assert.EqualError(t, err, "boom")
}

func TestRunConsumesBackupMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(4)
	up := &fakeUploader{}
	results := metrics.New(prometheus.NewRegistry()).Backups
	a := New(q, up, zap.NewNop(), results)

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other"}))
	msg, err := queue.NewBackupMessage(queue.BackupJob{Path: writeBackup(t)})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))
	missing, err := queue.NewBackupMessage(queue.BackupJob{Path: filepath.Join(t.TempDir(), "gone.csv")})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, missing))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeBackup, Body: []byte("{")}))

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(results.WithLabelValues(ResultFailed)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, up.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(results.WithLabelValues(ResultArchived)))
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("archiver did not stop")
	}
}
