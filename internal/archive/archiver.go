// Package archive ships backup CSVs written by bulk clears to off-box storage.
package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"qrattend/internal/cloudinary"
	"qrattend/internal/queue"
)

// Uploader stores a raw file remotely.
type Uploader interface {
	UploadRaw(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
}

// Archiver consumes backup jobs from a queue.
type Archiver struct {
	queue    queue.Queue
	uploader Uploader // nil when remote storage is not configured
	log      *zap.Logger
	results  *prometheus.CounterVec // labelled by result; may be nil
}

// Outcomes recorded in the results counter.
const (
	ResultArchived = "archived"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

// New creates an archiver. uploader and results may be nil.
func New(q queue.Queue, uploader Uploader, log *zap.Logger, results *prometheus.CounterVec) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{queue: q, uploader: uploader, log: log, results: results}
}

// Run processes messages until ctx is cancelled or the queue closes.
func (a *Archiver) Run(ctx context.Context) error {
	messages, err := a.queue.Consume(ctx)
	if err != nil {
		return err
	}
	a.log.Info("archiver started")
	for msg := range messages {
		if msg.Type != queue.TypeBackup {
			a.log.Warn("skipping unknown message", zap.String("type", msg.Type))
			continue
		}
		job, err := queue.DecodeBackup(msg)
		if err != nil {
			a.log.Error("decode backup job failed", zap.Error(err))
			a.count(ResultFailed)
			continue
		}
		url, err := a.Handle(ctx, job)
		switch {
		case err != nil:
			a.count(ResultFailed)
		case url == "":
			a.count(ResultSkipped)
		default:
			a.count(ResultArchived)
		}
	}
	a.log.Info("archiver stopped")
	return nil
}

// Handle uploads one backup file. It returns the remote URL, or "" when the
// upload was skipped.
func (a *Archiver) Handle(ctx context.Context, job queue.BackupJob) (string, error) {
	log := a.log.With(zap.String("file", job.File), zap.Int64("rows", job.Rows))
	if a.uploader == nil {
		log.Info("backup kept locally, remote storage not configured", zap.String("path", job.Path))
		return "", nil
	}
	data, err := os.ReadFile(job.Path)
	if err != nil {
		log.Error("read backup failed", zap.Error(err))
		return "", err
	}
	name := job.File
	if name == "" {
		name = filepath.Base(job.Path)
	}
	res, err := a.uploader.UploadRaw(ctx, data, name, strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		log.Error("backup upload failed", zap.Error(err))
		return "", err
	}
	log.Info("backup archived", zap.String("url", res.SecureURL), zap.String("public_id", res.PublicID))
	return res.SecureURL, nil
}

func (a *Archiver) count(result string) {
	if a.results != nil {
		a.results.WithLabelValues(result).Inc()
	}
}
