// Package queue carries ingestion jobs from the API process to the worker
// process over Redis, and carries their results back.
//
// Jobs are JSON envelopes pushed onto a Redis list and popped with BRPOP, so
// each job is delivered to at most one worker and never redelivered. Results
// are written to a (possibly separate) result backend with a TTL, and every
// batch id is indexed to the job that ingests it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TaskProcessPDFs is the only task type: ingest a batch of staged PDFs.
const TaskProcessPDFs = "process_pdfs"

// DefaultResultTTL is how long results and batch indexes are retained.
const DefaultResultTTL = 24 * time.Hour

const keyPrefix = "resumechat"

var (
	// ErrNoResult means the job exists but has not finished (or its result expired).
	ErrNoResult = errors.New("queue: no result yet")
	// ErrUnknownBatch means no job was ever indexed for the batch id.
	ErrUnknownBatch = errors.New("queue: unknown batch")
	// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
	ErrEmpty = errors.New("queue: no job available")
)

// Job is the envelope pushed onto the task list.
type Job struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	BatchID    string    `json:"batch_id"`
	FilePaths  []string  `json:"file_paths"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Status is the lifecycle state of a job as seen through the result backend.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the tagged outcome of a job.
type Result struct {
	JobID      string    `json:"job_id"`
	BatchID    string    `json:"batch_id"`
	Status     Status    `json:"status"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	Files      int       `json:"files"`
	Chunks     int       `json:"chunks"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Options configures a Client.
type Options struct {
	// BrokerURL is the Redis URL of the task list (redis://host:port/db).
	BrokerURL string
	// ResultBackendURL is the Redis URL results are written to. Empty reuses
	// the broker connection.
	ResultBackendURL string
	// ResultTTL is the retention of results and batch indexes.
	// Defaults to DefaultResultTTL.
	ResultTTL time.Duration
}

// Client enqueues jobs, dequeues them, and reads and writes their results.
// It is safe for concurrent use.
type Client struct {
	broker  *redis.Client
	results *redis.Client
	ttl     time.Duration
}

// NewClient connects to the broker and result backend named in opts.
// Connections are established lazily by go-redis; use Ping to verify.
func NewClient(opts Options) (*Client, error) {
	if opts.BrokerURL == "" {
		return nil, fmt.Errorf("queue: broker URL must be set")
	}
	brokerOpt, err := redis.ParseURL(opts.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse broker URL: %w", err)
	}
	c := &Client{broker: redis.NewClient(brokerOpt), ttl: opts.ResultTTL}
	if c.ttl <= 0 {
		c.ttl = DefaultResultTTL
	}

	if opts.ResultBackendURL == "" || opts.ResultBackendURL == opts.BrokerURL {
		c.results = c.broker
		return c, nil
	}
	resultOpt, err := redis.ParseURL(opts.ResultBackendURL)
	if err != nil {
		_ = c.broker.Close()
		return nil, fmt.Errorf("queue: parse result backend URL: %w", err)
	}
	c.results = redis.NewClient(resultOpt)
	return c, nil
}

// TaskKey is the Redis list holding jobs of the given task.
func TaskKey(task string) string { return keyPrefix + ":tasks:" + task }

func resultKey(jobID string) string  { return keyPrefix + ":results:" + jobID }
func batchKey(batchID string) string { return keyPrefix + ":batches:" + batchID }

// Enqueue pushes exactly one process_pdfs job for the batch and indexes the
// batch to it. It returns the enqueued job.
func (c *Client) Enqueue(ctx context.Context, batchID string, paths []string) (Job, error) {
	job := Job{
		ID:         uuid.NewString(),
		Task:       TaskProcessPDFs,
		BatchID:    batchID,
		FilePaths:  paths,
		EnqueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("queue: marshal job: %w", err)
	}

	// Index first so a fast worker never finishes a job the API cannot find.
	if err := c.results.Set(ctx, batchKey(batchID), job.ID, c.ttl).Err(); err != nil {
		return Job{}, fmt.Errorf("queue: index batch %s: %w", batchID, err)
	}
	if err := c.broker.LPush(ctx, TaskKey(job.Task), payload).Err(); err != nil {
		_ = c.results.Del(context.WithoutCancel(ctx), batchKey(batchID)).Err()
		return Job{}, fmt.Errorf("queue: enqueue batch %s: %w", batchID, err)
	}
	return job, nil
}

// Dequeue blocks up to timeout for the next job of task. It returns ErrEmpty
// when the timeout elapses with no job. A popped job is never redelivered.
func (c *Client) Dequeue(ctx context.Context, task string, timeout time.Duration) (Job, error) {
	vals, err := c.broker.BRPop(ctx, timeout, TaskKey(task)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrEmpty
	}
	if err != nil {
		return Job{}, fmt.Errorf("queue: dequeue %s: %w", task, err)
	}
	// BRPOP replies with [key, value].
	if len(vals) != 2 {
		return Job{}, fmt.Errorf("queue: dequeue %s: unexpected reply of %d elements", task, len(vals))
	}

	var job Job
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return Job{}, fmt.Errorf("queue: decode job: %w", err)
	}
	return job, nil
}

// Len returns the number of jobs waiting for task.
func (c *Client) Len(ctx context.Context, task string) (int64, error) {
	n, err := c.broker.LLen(ctx, TaskKey(task)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len %s: %w", task, err)
	}
	return n, nil
}

// StoreResult writes the result of a finished job.
func (c *Client) StoreResult(ctx context.Context, res Result) error {
	if res.FinishedAt.IsZero() {
		res.FinishedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	if err := c.results.Set(ctx, resultKey(res.JobID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("queue: store result %s: %w", res.JobID, err)
	}
	return nil
}

// Result returns the stored result of a job, or ErrNoResult.
func (c *Client) Result(ctx context.Context, jobID string) (Result, error) {
	raw, err := c.results.Get(ctx, resultKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, ErrNoResult
	}
	if err != nil {
		return Result{}, fmt.Errorf("queue: get result %s: %w", jobID, err)
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("queue: decode result %s: %w", jobID, err)
	}
	return res, nil
}

// BatchResult resolves a batch id to its job and returns the job's result.
// A known batch whose job has not finished yields a StatusPending result.
// A batch never indexed (or whose index expired) yields ErrUnknownBatch.
func (c *Client) BatchResult(ctx context.Context, batchID string) (Result, error) {
	jobID, err := c.results.Get(ctx, batchKey(batchID)).Result()
	if errors.Is(err, redis.Nil) {
		return Result{}, ErrUnknownBatch
	}
	if err != nil {
		return Result{}, fmt.Errorf("queue: get batch %s: %w", batchID, err)
	}

	res, err := c.Result(ctx, jobID)
	if errors.Is(err, ErrNoResult) {
		return Result{JobID: jobID, BatchID: batchID, Status: StatusPending}, nil
	}
	return res, err
}

// Ping checks both Redis connections.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.broker.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("queue: broker ping: %w", err)
	}
	if c.results != c.broker {
		if err := c.results.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("queue: result backend ping: %w", err)
		}
	}
	return nil
}

// Close closes both Redis connections.
func (c *Client) Close() error {
	err := c.broker.Close()
	if c.results != c.broker {
		err = errors.Join(err, c.results.Close())
	}
	return err
}
