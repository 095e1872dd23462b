package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitverify/internal/domain"
	"splitverify/internal/ports"
	"splitverify/internal/services/workflow"
)

func TestSessionsLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessions()
	ctrl := workflow.New(nil, 0.25)

	id, err := store.Create(ctx, ctrl)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), domain.ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestJobsFIFO(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobs()
	first, err := jobs.Enqueue(ctx, ports.IngestJob{Filename: "a.csv", Payload: []byte("x")})
	require.NoError(t, err)
	second, err := jobs.Enqueue(ctx, ports.IngestJob{Filename: "b.csv"})
	require.NoError(t, err)

	job, found, err := jobs.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first, job.ID)
	assert.Equal(t, ports.JobRunning, job.Status)

	job, found, err = jobs.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, job.ID)

	_, found, err = jobs.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJobsClaimSkipsRunning(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobs()
	id, err := jobs.Enqueue(ctx, ports.IngestJob{})
	require.NoError(t, err)

	_, err = jobs.Claim(ctx, id)
	require.NoError(t, err)
	_, err = jobs.Claim(ctx, id)
	assert.Error(t, err)

	_, found, err := jobs.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found, "inline-claimed job must not be dispatched again")

	_, err = jobs.Claim(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobsFinishDropsPayload(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobs()
	id, err := jobs.Enqueue(ctx, ports.IngestJob{Payload: []byte("name,percentage\n")})
	require.NoError(t, err)

	require.NoError(t, jobs.MarkFailed(ctx, id, "bad header"))
	job, err := jobs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ports.JobFailed, job.Status)
	assert.Equal(t, "bad header", job.Reason)
	assert.Nil(t, job.Payload)
	require.NotNil(t, job.FinishedAt)

	require.NoError(t, jobs.MarkSuperseded(ctx, id))
	job, _ = jobs.Get(ctx, id)
	assert.Equal(t, ports.JobSuperseded, job.Status)

	assert.ErrorIs(t, jobs.MarkCompleted(ctx, uuid.New()), domain.ErrNotFound)
}

func TestJobsRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobs()
	id := uuid.New()
	_, err := jobs.Enqueue(ctx, ports.IngestJob{ID: id})
	require.NoError(t, err)
	_, err = jobs.Enqueue(ctx, ports.IngestJob{ID: id})
	assert.Error(t, err)
}

func TestJobsInlineNeverDispatched(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobs()
	inline, err := jobs.Enqueue(ctx, ports.IngestJob{Inline: true})
	require.NoError(t, err)
	background, err := jobs.Enqueue(ctx, ports.IngestJob{})
	require.NoError(t, err)

	job, found, err := jobs.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, background, job.ID)
	_, found, err = jobs.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	job, err = jobs.Claim(ctx, inline)
	require.NoError(t, err)
	assert.Equal(t, ports.JobRunning, job.Status)
	assert.True(t, job.Inline)
}
