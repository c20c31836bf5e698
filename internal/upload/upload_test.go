package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/resumechat/internal/collection"
	"github.com/54b3r/resumechat/internal/events"
	"github.com/54b3r/resumechat/internal/queue"
	"github.com/54b3r/resumechat/internal/store"
)

const pdfBody = "%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n%%EOF\n"

func pdfPart(name string) Part {
	return Part{Filename: name, Body: strings.NewReader(pdfBody)}
}

type fakeQueue struct {
	mu   sync.Mutex
	err  error
	jobs []queue.Job
}

func (f *fakeQueue) Enqueue(_ context.Context, batchID string, paths []string) (queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return queue.Job{}, f.err
	}
	job := queue.Job{
		ID:         uuid.NewString(),
		Task:       queue.TaskProcessPDFs,
		BatchID:    batchID,
		FilePaths:  paths,
		EnqueuedAt: time.Now().UTC(),
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

type fakeLedger struct {
	err     error
	batches []store.Batch
}

func (f *fakeLedger) Record(_ context.Context, b store.Batch) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, b)
	return nil
}
func (f *fakeLedger) Get(context.Context, string) (store.Batch, error) { return store.Batch{}, store.ErrNotFound }
func (f *fakeLedger) Recent(context.Context, int) ([]store.Batch, error) { return nil, nil }
func (f *fakeLedger) Close() error                                       { return nil }

type fakePublisher struct {
	err    error
	events []events.BatchQueued
}

func (f *fakePublisher) PublishBatchQueued(ev events.BatchQueued) error {
	f.events = append(f.events, ev)
	return f.err
}

type fixture struct {
	dir      string
	queue    *fakeQueue
	ledger   *fakeLedger
	pub      *fakePublisher
	registry *collection.Registry
	recv     *Receiver
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	st, err := NewStager(dir, maxBytes)
	require.NoError(t, err)

	f := &fixture{
		dir:      dir,
		queue:    &fakeQueue{},
		ledger:   &fakeLedger{},
		pub:      &fakePublisher{},
		registry: collection.NewRegistry(""),
	}
	f.recv, err = NewReceiver(&Config{
		Stager:     st,
		Queue:      f.queue,
		Registry:   f.registry,
		Ledger:     f.ledger,
		Events:     f.pub,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) staged(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestReceive_OneBatchOneJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	rc, err := f.recv.Receive(context.Background(), []Part{pdfPart("alice.pdf"), pdfPart("bob.pdf")})
	require.NoError(t, err)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, rc.BatchID, job.BatchID)
	assert.Equal(t, rc.FilePaths, job.FilePaths)
	assert.Equal(t, rc.JobID, job.ID)
	require.Len(t, rc.FilePaths, 2)
	assert.NotEqual(t, rc.FilePaths[0], rc.FilePaths[1])

	for _, p := range rc.FilePaths {
		assert.Equal(t, f.dir, filepath.Dir(p))
		assert.True(t, strings.HasSuffix(p, ".pdf"))
		_, err := uuid.Parse(strings.TrimSuffix(filepath.Base(p), ".pdf"))
		assert.NoError(t, err, "staged name should be a uuid: %s", p)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, pdfBody, string(data))
	}

	cur := f.registry.Current()
	assert.Equal(t, rc.BatchID, cur.Collection)
	assert.Equal(t, uint64(1), cur.Version)
	assert.Equal(t, cur, rc.Scope)

	require.Len(t, f.ledger.batches, 1)
	assert.Equal(t, rc.BatchID, f.ledger.batches[0].ID)
	assert.Equal(t, rc.JobID, f.ledger.batches[0].JobID)

	assert.Empty(t, f.pub.events, "announce happens only after the response")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.recv.metrics.batches))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.recv.metrics.files))
}

func TestReceive_NoFiles(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	_, err := f.recv.Receive(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Empty(t, f.queue.jobs)
	assert.Equal(t, collection.Default, f.registry.Current().Collection)
}

func TestReceive_StagingFailureLeavesNothingBehind(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	parts := []Part{
		pdfPart("good.pdf"),
		{Filename: "notes.txt", Body: strings.NewReader("plain text resume")},
	}
	_, err := f.recv.Receive(context.Background(), parts)
	assert.ErrorIs(t, err, ErrNotPDF)

	assert.Empty(t, f.staged(t))
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.ledger.batches)
	assert.Equal(t, uint64(0), f.registry.Current().Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.recv.metrics.failures.WithLabelValues("not_pdf")))
}

func TestReceive_EnqueueFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	f.queue.err = errors.New("redis: connection refused")

	_, err := f.recv.Receive(context.Background(), []Part{pdfPart("a.pdf")})
	assert.ErrorIs(t, err, ErrEnqueue)
	assert.ErrorContains(t, err, "connection refused")

	assert.Empty(t, f.staged(t))
	assert.Equal(t, collection.Default, f.registry.Current().Collection)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.recv.metrics.failures.WithLabelValues("enqueue")))
}

func TestReceive_LedgerFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	f.ledger.err = errors.New("disk full")

	rc, err := f.recv.Receive(context.Background(), []Part{pdfPart("a.pdf")})
	require.NoError(t, err)
	assert.Equal(t, rc.BatchID, f.registry.Current().Collection)
}

func TestAnnounce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	rc, err := f.recv.Receive(context.Background(), []Part{pdfPart("a.pdf"), pdfPart("b.pdf")})
	require.NoError(t, err)
	f.recv.Announce(rc)

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0]
	assert.Equal(t, rc.BatchID, ev.BatchID)
	assert.Equal(t, rc.JobID, ev.JobID)
	assert.Equal(t, 2, ev.FileCount)

	// A failing publisher is logged, never surfaced.
	f.pub.err = errors.New("bus closed")
	f.recv.Announce(rc)
}

func TestStager_SizeLimit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := NewStager(dir, 16)
	require.NoError(t, err)

	_, err = st.Stage([]Part{{Filename: "big.pdf", Body: bytes.NewReader(bytes.Repeat([]byte("x"), 17))}})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	paths, err := st.Stage([]Part{{Filename: "exact.pdf", Body: bytes.NewReader(bytes.Repeat([]byte("x"), 16))}})
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestStager_AcceptsSniffedPDFWithoutExtension(t *testing.T) {
	t.Parallel()
	st, err := NewStager(t.TempDir(), 0)
	require.NoError(t, err)

	paths, err := st.Stage([]Part{{Filename: "resume", Body: strings.NewReader(pdfBody)}})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(paths[0], ".pdf"))
}

func TestStager_RejectsEmptyFile(t *testing.T) {
	t.Parallel()
	st, err := NewStager(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = st.Stage([]Part{{Filename: "empty.pdf", Body: strings.NewReader("")}})
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestNewReceiver_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewReceiver(nil)
	assert.Error(t, err)
	_, err = NewReceiver(&Config{})
	assert.Error(t, err)
}
