package ingestrunner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"splitverify/internal/ports"
)

// ErrSuperseded is returned by a processor when the session moved on (reset or
// another load) before the job's result could be applied.
var ErrSuperseded = errors.New("ingestion superseded")

// JobProcessor performs the ingestion work for a claimed job.
type JobProcessor interface {
	Process(ctx context.Context, job ports.IngestJob) error
}

// Run claims queued jobs every pollInterval and hands them to concurrency
// workers. It blocks until ctx is cancelled and every worker has returned.
func Run(ctx context.Context, repo ports.JobRepository, processor JobProcessor, concurrency int, pollInterval time.Duration, logger *zap.Logger) {
	if concurrency < 1 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	jobsCh := make(chan ports.IngestJob, concurrency)

	var wg sync.WaitGroup
	wg.Add(1)
	// dispatcher loop
	go func() {
		defer wg.Done()
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						logger.Warn("job claim error", zap.Error(err))
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutting down")
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				if err := finish(ctx, repo, job.ID, processor.Process(ctx, job)); err != nil {
					logger.Warn("ingest job failed",
						zap.Int("worker", idx),
						zap.Stringer("job", job.ID),
						zap.Stringer("session", job.SessionID),
						zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
}

// ProcessInline claims and processes a specific job synchronously using the
// same processor the background workers use.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor JobProcessor, jobID uuid.UUID) error {
	job, err := repo.Claim(ctx, jobID)
	if err != nil {
		return err
	}
	return finish(ctx, repo, job.ID, processor.Process(ctx, job))
}

// finish records the job outcome and returns the processing error, if any.
func finish(ctx context.Context, repo ports.JobRepository, jobID uuid.UUID, procErr error) error {
	// Status updates must land even when the request context is gone.
	ctx = context.WithoutCancel(ctx)
	switch {
	case procErr == nil:
		return repo.MarkCompleted(ctx, jobID)
	case errors.Is(procErr, ErrSuperseded):
		return repo.MarkSuperseded(ctx, jobID)
	default:
		_ = repo.MarkFailed(ctx, jobID, procErr.Error())
		return procErr
	}
}
