package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"splitverify/internal/domain"
	"splitverify/internal/services/workflow"
)

// Ingestor turns an uploaded file into contributor rows. It is the boundary to
// the file parsing collaborator; the engine puts no format constraints on it.
type Ingestor interface {
	Ingest(ctx context.Context, filename, contentType string, r io.Reader) (domain.SplitSheet, error)
}

// SessionStore holds live workflow sessions.
type SessionStore interface {
	Create(ctx context.Context, c *workflow.Controller) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*workflow.Controller, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Len() int
}

// Sessions drives the split verification workflow for many sessions.
type Sessions interface {
	Create(ctx context.Context) (uuid.UUID, workflow.Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	LoadSample(ctx context.Context, id uuid.UUID, kind domain.SampleKind) (workflow.Snapshot, error)
	LoadSheet(ctx context.Context, id uuid.UUID, sheet domain.SplitSheet) (workflow.Snapshot, error)
	Upload(ctx context.Context, id uuid.UUID, upload Upload) (jobID uuid.UUID, err error)
	UploadAndWait(ctx context.Context, id uuid.UUID, upload Upload) (workflow.Snapshot, error)
	JobStatus(ctx context.Context, id, jobID uuid.UUID) (IngestJob, error)
	AutoFix(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error)
	Verify(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error)
	Distribute(ctx context.Context, id uuid.UUID, grossAmount float64) (workflow.Snapshot, error)
	Reset(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error)
}

// Upload is a raw file handed to the ingestor.
type Upload struct {
	Filename    string
	ContentType string
	Payload     []byte
}
