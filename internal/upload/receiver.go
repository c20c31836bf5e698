package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/resumechat/internal/collection"
	"github.com/54b3r/resumechat/internal/events"
	"github.com/54b3r/resumechat/internal/queue"
	"github.com/54b3r/resumechat/internal/store"
)

// ErrEnqueue is returned when the batch was staged but the ingestion job
// could not be enqueued. The staged files have been removed.
var ErrEnqueue = errors.New("upload: enqueue failed")

// Enqueuer pushes ingestion jobs. *queue.Client satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, batchID string, paths []string) (queue.Job, error)
}

// Publisher announces accepted batches. *events.Bus satisfies it.
type Publisher interface {
	PublishBatchQueued(ev events.BatchQueued) error
}

// Config holds the dependencies of a Receiver.
type Config struct {
	// Stager writes the uploaded files. Required.
	Stager *Stager
	// Queue receives one job per batch. Required.
	Queue Enqueuer
	// Registry is pointed at each accepted batch. Required.
	Registry *collection.Registry
	// Ledger records accepted batches. Optional; failures are logged only.
	Ledger store.Ledger
	// Events receives batch.queued announcements. Optional.
	Events Publisher
	// Logger is the structured logger. Required.
	Logger *slog.Logger
	// Registerer receives the upload metrics. If nil, prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer
}

// Receipt describes an accepted batch.
type Receipt struct {
	// BatchID is the batch id and the collection its chunks are stored under.
	BatchID string
	// JobID is the enqueued ingestion job.
	JobID string
	// FilePaths are the staged locations, in upload order.
	FilePaths []string
	// QueuedAt is when the job was enqueued.
	QueuedAt time.Time
	// Scope is the registry snapshot installed for the batch.
	Scope collection.Scope
}

// Receiver runs the upload sequence: stage, enqueue, set the registry,
// record the batch, and (once the caller has responded) announce it.
type Receiver struct {
	stager   *Stager
	queue    Enqueuer
	registry *collection.Registry
	ledger   store.Ledger
	events   Publisher
	log      *slog.Logger
	metrics  *uploadMetrics
}

// NewReceiver validates cfg and returns a Receiver.
func NewReceiver(cfg *Config) (*Receiver, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("upload: config must not be nil")
	case cfg.Stager == nil:
		return nil, fmt.Errorf("upload: stager must not be nil")
	case cfg.Queue == nil:
		return nil, fmt.Errorf("upload: queue must not be nil")
	case cfg.Registry == nil:
		return nil, fmt.Errorf("upload: registry must not be nil")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("upload: logger must not be nil")
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Receiver{
		stager:   cfg.Stager,
		queue:    cfg.Queue,
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		events:   cfg.Events,
		log:      cfg.Logger,
		metrics:  newUploadMetrics(reg),
	}, nil
}

// MaxFileBytes returns the per-file size limit enforced while staging.
func (r *Receiver) MaxFileBytes() int64 { return r.stager.MaxBytes() }

// Receive stages parts under one new batch id, enqueues exactly one
// ingestion job for them, and installs the batch as the active collection.
// On staging or enqueue failure nothing is left on disk and the registry is
// unchanged. Receive never waits for ingestion.
func (r *Receiver) Receive(ctx context.Context, parts []Part) (Receipt, error) {
	batchID := uuid.NewString()
	log := r.log.With(slog.String("batch_id", batchID))

	paths, err := r.stager.Stage(parts)
	if err != nil {
		r.metrics.failures.WithLabelValues(failureReason(err)).Inc()
		return Receipt{}, err
	}

	job, err := r.queue.Enqueue(ctx, batchID, paths)
	if err != nil {
		r.stager.Remove(paths)
		r.metrics.failures.WithLabelValues("enqueue").Inc()
		log.Error("upload: enqueue failed, staged files removed",
			slog.Int("files", len(paths)),
			slog.Any("error", err),
		)
		return Receipt{}, fmt.Errorf("%w: %w", ErrEnqueue, err)
	}

	scope := r.registry.Set(batchID)

	rc := Receipt{
		BatchID:   batchID,
		JobID:     job.ID,
		FilePaths: paths,
		QueuedAt:  job.EnqueuedAt,
		Scope:     scope,
	}
	r.record(ctx, log, rc)

	r.metrics.batches.Inc()
	r.metrics.files.Add(float64(len(paths)))
	log.Info("upload: batch queued",
		slog.String("job_id", job.ID),
		slog.Int("files", len(paths)),
		slog.Uint64("scope_version", scope.Version),
	)
	return rc, nil
}

// record writes the batch to the ledger. Failures never fail the upload.
func (r *Receiver) record(ctx context.Context, log *slog.Logger, rc Receipt) {
	if r.ledger == nil {
		return
	}
	err := r.ledger.Record(ctx, store.Batch{
		ID:        rc.BatchID,
		JobID:     rc.JobID,
		FilePaths: rc.FilePaths,
		CreatedAt: rc.QueuedAt,
	})
	if err != nil {
		log.Warn("upload: ledger record failed", slog.Any("error", err))
	}
}

// Announce publishes batch.queued for rc. Callers invoke it after the
// upload response has been written.
func (r *Receiver) Announce(rc Receipt) {
	if r.events == nil {
		return
	}
	err := r.events.PublishBatchQueued(events.BatchQueued{
		BatchID:   rc.BatchID,
		JobID:     rc.JobID,
		FileCount: len(rc.FilePaths),
		QueuedAt:  rc.QueuedAt,
	})
	if err != nil {
		r.log.Error("upload: announce failed, agent will not be refreshed for this batch",
			slog.String("batch_id", rc.BatchID),
			slog.Any("error", err),
		)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoFiles):
		return "no_files"
	case errors.Is(err, ErrNotPDF):
		return "not_pdf"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	default:
		return "staging"
	}
}
