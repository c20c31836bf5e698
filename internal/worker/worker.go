// Package worker runs the background ingestion loop: it pops process_pdfs
// jobs off the queue, ingests each batch into the vector store, and records a
// tagged result for every job. Jobs are processed at most once and never
// retried; failures are recorded, counted, and logged rather than swallowed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/resumechat/internal/ingestion"
	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/queue"
)

// Source is the queue side the worker consumes from.
type Source interface {
	Dequeue(ctx context.Context, task string, timeout time.Duration) (queue.Job, error)
	StoreResult(ctx context.Context, res queue.Result) error
	Len(ctx context.Context, task string) (int64, error)
}

// Ingester ingests one batch into its collection.
type Ingester interface {
	IngestBatch(ctx context.Context, batchID string, paths []string, progress func(string)) ingestion.Result
}

// Config holds worker settings.
type Config struct {
	// Concurrency is the number of jobs processed at once. Defaults to 2.
	Concurrency int
	// PollTimeout bounds each blocking dequeue. Defaults to 5s.
	PollTimeout time.Duration
	// JobTimeout bounds a single job. Defaults to 10m.
	JobTimeout time.Duration
	// DepthInterval is how often the queue depth gauge is refreshed.
	// Defaults to 15s.
	DepthInterval time.Duration
}

// Worker consumes ingestion jobs.
type Worker struct {
	src     Source
	ing     Ingester
	cfg     Config
	metrics *workerMetrics
	log     *slog.Logger
}

// New constructs a Worker. Metrics are registered against reg.
func New(src Source, ing Ingester, cfg Config, reg prometheus.Registerer, log *slog.Logger) (*Worker, error) {
	if src == nil {
		return nil, fmt.Errorf("worker: source must not be nil")
	}
	if ing == nil {
		return nil, fmt.Errorf("worker: ingester must not be nil")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.DepthInterval <= 0 {
		cfg.DepthInterval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		src:     src,
		ing:     ing,
		cfg:     cfg,
		metrics: newWorkerMetrics(reg),
		log:     log.With(slog.String("component", "worker")),
	}, nil
}

// Run consumes jobs until ctx is cancelled, then waits for in-flight jobs to
// finish. It returns nil on a clean shutdown.
func (w *Worker) Run(ctx context.Context) error {
	pool, err := ants.NewPool(w.cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("worker: create pool: %w", err)
	}
	defer pool.Release()

	w.log.Info("worker: started",
		slog.Int("concurrency", w.cfg.Concurrency),
		slog.String("task", queue.TaskProcessPDFs),
	)

	var inFlight sync.WaitGroup
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.consume(gctx, pool, &inFlight) })
	g.Go(func() error { w.watchDepth(gctx); return nil })

	err = g.Wait()
	inFlight.Wait()
	w.log.Info("worker: stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consume pops jobs and hands them to the pool. Submit blocks while every
// pool slot is busy, so at most one popped job waits for a slot.
func (w *Worker) consume(ctx context.Context, pool *ants.Pool, inFlight *sync.WaitGroup) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.src.Dequeue(ctx, queue.TaskProcessPDFs, w.cfg.PollTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("worker: dequeue failed", slog.Any("error", err))
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		inFlight.Add(1)
		// In-flight jobs outlive shutdown of the consume loop.
		jobCtx := context.WithoutCancel(ctx)
		if err := pool.Submit(func() {
			defer inFlight.Done()
			w.Handle(jobCtx, job)
		}); err != nil {
			inFlight.Done()
			// The job is already off the queue; record it rather than lose it.
			w.record(jobCtx, job, ingestion.Result{
				BatchID: job.BatchID,
				Status:  ingestion.StatusFailure,
				Files:   len(job.FilePaths),
				Err:     fmt.Errorf("worker: submit: %w", err),
			})
		}
	}
}

// Handle processes one job synchronously and records its result.
func (w *Worker) Handle(ctx context.Context, job queue.Job) queue.Result {
	w.metrics.inFlight.Inc()
	defer w.metrics.inFlight.Dec()

	log := w.log.With(
		slog.String("job_id", job.ID),
		slog.String("batch_id", job.BatchID),
	)
	ctx = logging.WithLogger(ctx, log)
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	var res ingestion.Result
	switch {
	case job.Task != queue.TaskProcessPDFs:
		res = ingestion.Result{BatchID: job.BatchID, Status: ingestion.StatusFailure,
			Err: fmt.Errorf("worker: unknown task %q", job.Task)}
	case job.BatchID == "":
		res = ingestion.Result{Status: ingestion.StatusFailure,
			Err: fmt.Errorf("worker: job %s has no batch id", job.ID)}
	default:
		log.Info("worker: job started", slog.Int("files", len(job.FilePaths)))
		res = w.ingest(ctx, log, job)
	}

	return w.record(ctx, job, res)
}

// ingest runs the ingester for job. A panic is turned into a failure result
// so the job is still recorded.
func (w *Worker) ingest(ctx context.Context, log *slog.Logger, job queue.Job) (res ingestion.Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker: ingester panicked", slog.Any("panic", r))
			res = ingestion.Result{
				BatchID:  job.BatchID,
				Status:   ingestion.StatusFailure,
				Files:    len(job.FilePaths),
				Err:      fmt.Errorf("worker: ingestion panicked: %v", r),
				Duration: time.Since(started),
			}
		}
	}()
	return w.ing.IngestBatch(ctx, job.BatchID, job.FilePaths, func(msg string) {
		log.Debug("worker: progress", slog.String("msg", msg))
	})
}

// record logs, counts, and stores the tagged result of a job.
func (w *Worker) record(ctx context.Context, job queue.Job, res ingestion.Result) queue.Result {
	out := queue.Result{
		JobID:   job.ID,
		BatchID: job.BatchID,
		Status:  queue.Status(res.Status),
		Summary: res.Summary(),
		Files:   res.Files,
		Chunks:  res.Chunks,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}

	status := string(res.Status)
	w.metrics.jobsTotal.WithLabelValues(status).Inc()
	w.metrics.jobDurationSeconds.WithLabelValues(status).Observe(res.Duration.Seconds())

	if res.Status == ingestion.StatusSuccess {
		w.metrics.chunksTotal.Add(float64(res.Chunks))
		w.log.Info("worker: job finished",
			slog.String("job_id", job.ID),
			slog.String("batch_id", job.BatchID),
			slog.String("summary", out.Summary),
			slog.Duration("duration", res.Duration),
		)
	} else {
		w.log.Error("worker: job failed",
			slog.String("job_id", job.ID),
			slog.String("batch_id", job.BatchID),
			slog.Any("error", res.Err),
		)
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.src.StoreResult(storeCtx, out); err != nil {
		w.log.Error("worker: failed to store job result",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
	return out
}

// watchDepth refreshes the queue depth gauge until ctx is cancelled.
func (w *Worker) watchDepth(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.DepthInterval)
	defer ticker.Stop()
	for {
		if n, err := w.src.Len(ctx, queue.TaskProcessPDFs); err == nil {
			w.metrics.queueDepth.Set(float64(n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
