package ingestrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"splitverify/internal/metrics"
	"splitverify/internal/ports"
	"splitverify/internal/services/workflow"
)

// SheetProcessor parses a job's payload and applies the result to its session.
type SheetProcessor struct {
	Ingestor ports.Ingestor
	Sessions ports.SessionStore
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Timeout  time.Duration
}

func (p SheetProcessor) Process(ctx context.Context, job ports.IngestJob) error {
	start := time.Now()
	status, err := p.process(ctx, job)
	p.Metrics.IngestFinished(string(status), time.Since(start))
	return err
}

func (p SheetProcessor) process(ctx context.Context, job ports.IngestJob) (ports.JobStatus, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctrl, err := p.Sessions.Get(ctx, job.SessionID)
	if err != nil {
		return ports.JobFailed, fmt.Errorf("session %s: %w", job.SessionID, err)
	}

	parseCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	sheet, ingestErr := p.Ingestor.Ingest(parseCtx, job.Filename, job.ContentType, bytes.NewReader(job.Payload))
	if ingestErr != nil {
		if err := ctrl.FailLoad(job.Ticket, ingestErr); errors.Is(err, workflow.ErrStaleLoad) {
			return ports.JobSuperseded, ErrSuperseded
		}
		return ports.JobFailed, ingestErr
	}

	snap, err := ctrl.CompleteLoad(job.Ticket, sheet)
	if errors.Is(err, workflow.ErrStaleLoad) {
		logger.Info("discarding superseded ingestion",
			zap.Stringer("session", job.SessionID),
			zap.Uint64("ticket", job.Ticket.Version),
			zap.Uint64("current", snap.Version))
		return ports.JobSuperseded, ErrSuperseded
	}
	if err != nil {
		return ports.JobFailed, err
	}
	p.Metrics.ObserveIssues(snap.Issues)
	logger.Info("sheet ingested",
		zap.Stringer("session", job.SessionID),
		zap.Stringer("job", job.ID),
		zap.Int("contributors", snap.Sheet.Len()),
		zap.Int("issues", len(snap.Issues)))
	return ports.JobCompleted, nil
}
