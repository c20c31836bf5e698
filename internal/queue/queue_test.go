package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(Options{BrokerURL: "redis://" + mr.Addr() + "/0", ResultTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewClient(Options{})
	assert.Error(t, err)
	_, err = NewClient(Options{BrokerURL: "not a url"})
	assert.Error(t, err)
}

func TestEnqueue_OneJobPerBatch(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)
	ctx := context.Background()

	job, err := c.Enqueue(ctx, "b1", []string{"/u/p1.pdf", "/u/p2.pdf"})
	require.NoError(t, err)
	assert.Equal(t, TaskProcessPDFs, job.Task)
	assert.NotEmpty(t, job.ID)

	n, err := c.Len(ctx, TaskProcessPDFs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	indexed, err := mr.Get("resumechat:batches:b1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, indexed)
	assert.Equal(t, time.Hour, mr.TTL("resumechat:batches:b1"))
}

func TestDequeue_FIFOAndAtMostOnce(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	first, err := c.Enqueue(ctx, "b1", []string{"/u/a.pdf"})
	require.NoError(t, err)
	second, err := c.Enqueue(ctx, "b2", []string{"/u/b.pdf"})
	require.NoError(t, err)

	got, err := c.Dequeue(ctx, TaskProcessPDFs, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, []string{"/u/a.pdf"}, got.FilePaths)

	got, err = c.Dequeue(ctx, TaskProcessPDFs, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = c.Dequeue(ctx, TaskProcessPDFs, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDequeue_Malformed(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)

	_, err := mr.Lpush(TaskKey(TaskProcessPDFs), "{not json")
	require.NoError(t, err)

	_, err = c.Dequeue(context.Background(), TaskProcessPDFs, time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}

func TestBatchResult_Lifecycle(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := c.BatchResult(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownBatch)

	job, err := c.Enqueue(ctx, "b1", []string{"/u/a.pdf"})
	require.NoError(t, err)

	pending, err := c.BatchResult(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Equal(t, job.ID, pending.JobID)

	require.NoError(t, c.StoreResult(ctx, Result{
		JobID:   job.ID,
		BatchID: "b1",
		Status:  StatusFailure,
		Summary: "Ingestion failed: boom",
		Error:   "boom",
		Files:   1,
	}))

	done, err := c.BatchResult(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, done.Status)
	assert.Equal(t, "boom", done.Error)
	assert.False(t, done.FinishedAt.IsZero())

	mr.FastForward(2 * time.Hour)
	_, err = c.Result(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSeparateResultBackend(t *testing.T) {
	t.Parallel()
	broker := miniredis.RunT(t)
	backend := miniredis.RunT(t)
	c, err := NewClient(Options{
		BrokerURL:        "redis://" + broker.Addr(),
		ResultBackendURL: "redis://" + backend.Addr(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	job, err := c.Enqueue(ctx, "b1", []string{"/u/a.pdf"})
	require.NoError(t, err)
	assert.True(t, broker.Exists(TaskKey(TaskProcessPDFs)))
	assert.False(t, broker.Exists("resumechat:batches:b1"))
	assert.True(t, backend.Exists("resumechat:batches:b1"))

	require.NoError(t, c.StoreResult(ctx, Result{JobID: job.ID, BatchID: "b1", Status: StatusSuccess}))
	assert.True(t, backend.Exists("resumechat:results:"+job.ID))
}

func TestEnqueue_BrokerDown(t *testing.T) {
	t.Parallel()
	c, mr := newTestClient(t)
	mr.Close()

	_, err := c.Enqueue(context.Background(), "b1", []string{"/u/a.pdf"})
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
