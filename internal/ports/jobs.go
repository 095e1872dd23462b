package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"splitverify/internal/services/workflow"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobSuperseded JobStatus = "superseded"
)

// IngestJob is one pending file ingestion for a session.
type IngestJob struct {
	ID          uuid.UUID       `json:"id"`
	SessionID   uuid.UUID       `json:"sessionId"`
	Ticket      workflow.Ticket `json:"ticket"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"contentType"`
	Payload     []byte          `json:"-"`
	// Inline jobs are processed by the caller that enqueued them and are
	// never handed to the background workers.
	Inline      bool            `json:"inline"`
	Status      JobStatus       `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	QueuedAt    time.Time       `json:"queuedAt"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// JobRepository supports enqueueing, claiming and updating ingestion jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, job IngestJob) (jobID uuid.UUID, err error)
	ClaimNext(ctx context.Context) (job IngestJob, found bool, err error)
	Claim(ctx context.Context, jobID uuid.UUID) (IngestJob, error)
	Get(ctx context.Context, jobID uuid.UUID) (IngestJob, error)
	MarkCompleted(ctx context.Context, jobID uuid.UUID) error
	MarkSuperseded(ctx context.Context, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error
}
