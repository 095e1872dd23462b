package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"splitverify/internal/domain"
	"splitverify/internal/metrics"
	"splitverify/internal/ports"
	"splitverify/internal/services/recorder"
	"splitverify/internal/services/workflow"
	"splitverify/internal/workers/ingestrunner"
)

var ErrEmptyUpload = errors.New("upload is empty")

type Service struct {
	store     ports.SessionStore
	jobs      ports.JobRepository
	processor ingestrunner.JobProcessor
	recorder  *recorder.Recorder
	taxRate   float64
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Options struct {
	TaxRate  float64
	Recorder *recorder.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func New(store ports.SessionStore, jobs ports.JobRepository, processor ingestrunner.JobProcessor, opts Options) *Service {
	if opts.Recorder == nil {
		opts.Recorder = recorder.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		jobs:      jobs,
		processor: processor,
		recorder:  opts.Recorder,
		taxRate:   opts.TaxRate,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

func (s *Service) Create(ctx context.Context) (uuid.UUID, workflow.Snapshot, error) {
	ctrl := workflow.New(s.recorder, s.taxRate)
	id, err := s.store.Create(ctx, ctrl)
	if err != nil {
		return uuid.Nil, workflow.Snapshot{}, err
	}
	s.metrics.SessionOpened()
	s.logger.Debug("session created", zap.Stringer("session", id))
	return id, ctrl.Snapshot(), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error) {
	ctrl, err := s.store.Get(ctx, id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.SessionClosed()
	return nil
}

func (s *Service) LoadSample(ctx context.Context, id uuid.UUID, kind domain.SampleKind) (workflow.Snapshot, error) {
	sheet, err := domain.Sample(kind)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return s.LoadSheet(ctx, id, sheet)
}

func (s *Service) LoadSheet(ctx context.Context, id uuid.UUID, sheet domain.SplitSheet) (workflow.Snapshot, error) {
	return s.apply(ctx, id, "load", func(c *workflow.Controller) (workflow.Snapshot, error) {
		snap, err := c.Load(sheet)
		if err == nil {
			s.metrics.ObserveIssues(snap.Issues)
		}
		return snap, err
	})
}

// Upload opens the session's loading state and queues the file for the
// ingestion workers.
func (s *Service) Upload(ctx context.Context, id uuid.UUID, upload ports.Upload) (uuid.UUID, error) {
	return s.enqueue(ctx, id, upload, false)
}

// UploadAndWait ingests the upload on the caller's goroutine. The job is
// recorded like any other but the background workers never claim it.
func (s *Service) UploadAndWait(ctx context.Context, id uuid.UUID, upload ports.Upload) (workflow.Snapshot, error) {
	jobID, err := s.enqueue(ctx, id, upload, true)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	if err := ingestrunner.ProcessInline(ctx, s.jobs, s.processor, jobID); err != nil {
		return workflow.Snapshot{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) enqueue(ctx context.Context, id uuid.UUID, upload ports.Upload, inline bool) (uuid.UUID, error) {
	if len(upload.Payload) == 0 {
		return uuid.Nil, ErrEmptyUpload
	}
	ctrl, err := s.store.Get(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	ticket, err := ctrl.BeginLoad()
	if err != nil {
		return uuid.Nil, err
	}
	jobID, err := s.jobs.Enqueue(ctx, ports.IngestJob{
		SessionID:   id,
		Ticket:      ticket,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Payload:     upload.Payload,
		Inline:      inline,
	})
	if err != nil {
		_ = ctrl.FailLoad(ticket, err)
		return uuid.Nil, fmt.Errorf("enqueue ingestion: %w", err)
	}
	s.logger.Info("upload queued",
		zap.Stringer("session", id),
		zap.Stringer("job", jobID),
		zap.String("filename", upload.Filename),
		zap.Int("bytes", len(upload.Payload)),
		zap.Bool("inline", inline))
	return jobID, nil
}

func (s *Service) JobStatus(ctx context.Context, id, jobID uuid.UUID) (ports.IngestJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return ports.IngestJob{}, err
	}
	if job.SessionID != id {
		return ports.IngestJob{}, domain.ErrNotFound
	}
	return job, nil
}

func (s *Service) AutoFix(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error) {
	return s.apply(ctx, id, "autofix", func(c *workflow.Controller) (workflow.Snapshot, error) {
		snap, err := c.AutoFix()
		if err == nil {
			s.metrics.AutoFixed(len(snap.Issues))
			s.metrics.ObserveIssues(snap.Issues)
		}
		return snap, err
	})
}

func (s *Service) Verify(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error) {
	return s.apply(ctx, id, "verify", func(c *workflow.Controller) (workflow.Snapshot, error) {
		snap, created, err := c.Verify()
		if created {
			s.metrics.Verified()
		}
		return snap, err
	})
}

func (s *Service) Distribute(ctx context.Context, id uuid.UUID, grossAmount float64) (workflow.Snapshot, error) {
	return s.apply(ctx, id, "distribute", func(c *workflow.Controller) (workflow.Snapshot, error) {
		snap, err := c.Distribute(grossAmount)
		if err == nil {
			s.metrics.Distributed()
		}
		return snap, err
	})
}

func (s *Service) Reset(ctx context.Context, id uuid.UUID) (workflow.Snapshot, error) {
	return s.apply(ctx, id, "reset", func(c *workflow.Controller) (workflow.Snapshot, error) {
		return c.Reset(), nil
	})
}

func (s *Service) apply(ctx context.Context, id uuid.UUID, op string, fn func(*workflow.Controller) (workflow.Snapshot, error)) (workflow.Snapshot, error) {
	ctrl, err := s.store.Get(ctx, id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	snap, err := fn(ctrl)
	if err != nil {
		s.logger.Debug("operation rejected",
			zap.Stringer("session", id),
			zap.String("op", op),
			zap.String("state", string(snap.State)),
			zap.Error(err))
		return snap, err
	}
	s.logger.Debug("operation applied",
		zap.Stringer("session", id),
		zap.String("op", op),
		zap.String("state", string(snap.State)),
		zap.Int("issues", len(snap.Issues)))
	return snap, nil
}
