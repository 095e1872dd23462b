package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"splitverify/internal/domain"
	"splitverify/internal/ports"
)

// Jobs is an in-process FIFO of ingestion jobs.
type Jobs struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*ports.IngestJob
	queued []uuid.UUID
	now    func() time.Time
}

func NewJobs() *Jobs {
	return &Jobs{
		jobs: make(map[uuid.UUID]*ports.IngestJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (j *Jobs) Enqueue(ctx context.Context, job ports.IngestJob) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, err
		}
		job.ID = id
	}
	job.Status = ports.JobQueued
	job.QueuedAt = j.now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.jobs[job.ID]; exists {
		return uuid.Nil, fmt.Errorf("job %s already enqueued", job.ID)
	}
	j.jobs[job.ID] = &job
	if !job.Inline {
		j.queued = append(j.queued, job.ID)
	}
	return job.ID, nil
}

// ClaimNext pops the oldest queued background job and marks it running.
func (j *Jobs) ClaimNext(ctx context.Context) (ports.IngestJob, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for len(j.queued) > 0 {
		id := j.queued[0]
		j.queued = j.queued[1:]
		job, ok := j.jobs[id]
		if !ok || job.Status != ports.JobQueued {
			continue
		}
		job.Status = ports.JobRunning
		return *job, true, nil
	}
	return ports.IngestJob{}, false, nil
}

// Claim marks a specific queued job running. Inline jobs are only reachable
// this way.
func (j *Jobs) Claim(ctx context.Context, jobID uuid.UUID) (ports.IngestJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return ports.IngestJob{}, domain.ErrNotFound
	}
	if job.Status != ports.JobQueued {
		return ports.IngestJob{}, fmt.Errorf("job %s is %s, not queued", jobID, job.Status)
	}
	job.Status = ports.JobRunning
	return *job, nil
}

func (j *Jobs) Get(ctx context.Context, jobID uuid.UUID) (ports.IngestJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return ports.IngestJob{}, domain.ErrNotFound
	}
	return *job, nil
}

func (j *Jobs) MarkCompleted(ctx context.Context, jobID uuid.UUID) error {
	return j.finish(jobID, ports.JobCompleted, "")
}

func (j *Jobs) MarkSuperseded(ctx context.Context, jobID uuid.UUID) error {
	return j.finish(jobID, ports.JobSuperseded, "a newer request replaced this upload")
}

func (j *Jobs) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	return j.finish(jobID, ports.JobFailed, reason)
}

func (j *Jobs) finish(jobID uuid.UUID, status ports.JobStatus, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := j.now()
	job.Status = status
	job.Reason = reason
	job.FinishedAt = &now
	job.Payload = nil
	return nil
}
