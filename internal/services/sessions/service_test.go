package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"splitverify/internal/adapters/fileingest"
	"splitverify/internal/adapters/memory"
	"splitverify/internal/domain"
	"splitverify/internal/metrics"
	"splitverify/internal/ports"
	"splitverify/internal/services/recorder"
	"splitverify/internal/services/workflow"
	"splitverify/internal/workers/ingestrunner"
)

type fixture struct {
	svc  *Service
	jobs *memory.Jobs
	reg  *prometheus.Registry
}

func newFixture(t *testing.T) fixture {
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := memory.NewSessions()
	jobs := memory.NewJobs()
	processor := ingestrunner.SheetProcessor{
		Ingestor: fileingest.New(0),
		Sessions: store,
		Metrics:  m,
		Logger:   logger,
	}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := recorder.New(
		recorder.WithClock(func() time.Time { return fixed }),
		recorder.WithIDGenerator(func() string { return "rec-fixed" }),
	)
	svc := New(store, jobs, processor, Options{TaxRate: 0.25, Recorder: rec, Metrics: m, Logger: logger})
	return fixture{svc: svc, jobs: jobs, reg: reg}
}

func TestServiceWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, snap, err := f.svc.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateAwaitingUpload, snap.State)

	snap, err = f.svc.LoadSample(ctx, id, domain.SampleIssues)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Issues)

	snap, err = f.svc.AutoFix(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, snap.Issues)

	snap, err = f.svc.Verify(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, snap.Record)
	assert.Equal(t, "rec-fixed", snap.Record.ID)

	// A repeat verify returns the same record and does not count twice.
	_, err = f.svc.Verify(ctx, id)
	require.NoError(t, err)

	snap, err = f.svc.Distribute(ctx, id, 200)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePaymentReady, snap.State)
	assert.Equal(t, 0.25, snap.TaxRate)

	assert.Equal(t, 1.0, metricValue(t, f.reg, "splitverify_verifications_total"))
	assert.Equal(t, 1.0, metricValue(t, f.reg, "splitverify_distributions_total"))
	assert.Equal(t, 1.0, metricValue(t, f.reg, "splitverify_sessions"))

	snap, err = f.svc.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateAwaitingUpload, snap.State)

	require.NoError(t, f.svc.Delete(ctx, id))
	_, err = f.svc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0.0, metricValue(t, f.reg, "splitverify_sessions"))
}

func TestServiceUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, _, err := f.svc.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, id, ports.Upload{Filename: "a.csv"})
	assert.ErrorIs(t, err, ErrEmptyUpload)

	upload := ports.Upload{Filename: "a.csv", Payload: []byte("name,percentage,ipi\nSolo,100,1\n")}
	jobID, err := f.svc.Upload(ctx, id, upload)
	require.NoError(t, err)

	job, err := f.svc.JobStatus(ctx, id, jobID)
	require.NoError(t, err)
	assert.Equal(t, ports.JobQueued, job.Status)
	_, err = f.svc.JobStatus(ctx, uuid.New(), jobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Upload(ctx, id, upload)
	assert.ErrorIs(t, err, workflow.ErrLoadInFlight)

	require.NoError(t, ingestrunner.ProcessInline(ctx, f.jobs, f.svc.processor, jobID))
	snap, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Sheet.Len())

	snap, err = f.svc.UploadAndWait(ctx, id, upload)
	require.NoError(t, err)
	assert.False(t, snap.Loading)
	assert.Equal(t, workflow.StateReviewing, snap.State)

	// Nothing is left for the background dispatcher.
	_, found, err := f.jobs.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestServiceUnknownSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	missing := uuid.New()

	_, err := f.svc.Verify(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Upload(ctx, missing, ports.Upload{Payload: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, missing), domain.ErrNotFound)
}

// gauge or counter value of an unlabelled metric.
func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name || len(mf.GetMetric()) == 0 {
			continue
		}
		m := mf.GetMetric()[0]
		if m.GetGauge() != nil {
			return m.GetGauge().GetValue()
		}
		return m.GetCounter().GetValue()
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
