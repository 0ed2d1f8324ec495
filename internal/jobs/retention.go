// Package jobs holds the periodic maintenance tasks run by the API process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"buildtrack/internal/repository"
	"buildtrack/internal/storage"

	"github.com/robfig/cron/v3"
)

// FileRetentionJob removes the stored blobs of replaced and deleted schedule
// files once they are older than MaxAge. The XmlFile rows stay for the history.
type FileRetentionJob struct {
	files   repository.XmlFileRepository
	store   storage.FileStore
	maxAge  time.Duration
	timeout time.Duration
	running int32
	now     func() time.Time
}

func NewFileRetentionJob(files repository.XmlFileRepository, store storage.FileStore, maxAge time.Duration) *FileRetentionJob {
	return &FileRetentionJob{
		files:   files,
		store:   store,
		maxAge:  maxAge,
		timeout: 10 * time.Minute,
		now:     time.Now,
	}
}

// Run purges every expired blob and returns how many were removed. A blob that
// is already gone still has its path cleared.
func (j *FileRetentionJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.maxAge)
	expired, err := j.files.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired files: %w", err)
	}

	removed := 0
	var errs []error
	for _, f := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := j.store.Delete(ctx, f.StoragePath); err != nil && !errors.Is(err, storage.ErrNotExist) {
			errs = append(errs, fmt.Errorf("file %s: %w", f.ID, err))
			continue
		}
		if err := j.files.ClearStoragePath(ctx, f.ID); err != nil {
			errs = append(errs, fmt.Errorf("file %s: %w", f.ID, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Tick is the cron entry point. Overlapping runs are skipped.
func (j *FileRetentionJob) Tick() {
	if !atomic.CompareAndSwapInt32(&j.running, 0, 1) {
		log.Println("Previous retention run still active. Skipping this run.")
		return
	}
	defer atomic.StoreInt32(&j.running, 0)

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.Run(ctx)
	if err != nil {
		log.Printf("File retention finished with errors (%d removed): %v", removed, err)
		return
	}
	log.Printf("File retention removed %d stored file(s)", removed)
}

// NewScheduler registers the retention job under spec. The caller starts and stops it.
func NewScheduler(spec string, job *FileRetentionJob) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
	)
	if _, err := c.AddFunc(spec, job.Tick); err != nil {
		return nil, fmt.Errorf("failed to schedule file retention %q: %w", spec, err)
	}
	return c, nil
}
