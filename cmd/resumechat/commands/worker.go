package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/ingestion"
	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/worker"
)

// NewWorkerCmd constructs the `resumechat worker` command, which consumes
// process_pdfs jobs and ingests each batch into the vector store.
func NewWorkerCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background ingestion worker",
		Long: `Run the background ingestion worker.

The worker pops process_pdfs jobs from QUEUE_BROKER_URL, extracts the text of
each staged PDF, splits it into overlapping chunks (CHUNK_SIZE / CHUNK_OVERLAP),
embeds the chunks, and stores them in the collection named after the batch.
Every job gets a tagged success or failure result in the result backend.
Jobs are never retried. VECTOR_BACKEND must be pgvector or qdrant: the
search tool reads what the worker writes, so the in-process memory backend
is refused.

Examples:
  resumechat worker
  WORKER_CONCURRENCY=4 resumechat worker --metrics-addr :9102`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			q, err := openQueue()
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			defer func() { _ = q.Close() }()
			if err := q.Ping(ctx); err != nil {
				return fmt.Errorf("worker: broker unreachable: %w", err)
			}

			emb, vs, err := openRetrieval(ctx, log, true)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			defer func() { _ = vs.Close() }()

			pipeline, err := ingestion.NewPipeline(nil, emb, vs, ingestionConfig())
			if err != nil {
				return fmt.Errorf("worker: failed to create pipeline: %w", err)
			}

			w, err := worker.New(q, pipeline, worker.Config{
				Concurrency: config.Int("WORKER_CONCURRENCY", 2),
				JobTimeout:  config.Duration("WORKER_JOB_TIMEOUT", 10*time.Minute),
			}, prometheus.DefaultRegisterer, log)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}

			serveMetrics(ctx, metricsAddr, prometheus.DefaultGatherer, log)

			log.Info("worker starting", slog.Int("concurrency", config.Int("WORKER_CONCURRENCY", 2)))
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to expose /metrics on (disabled when empty)")

	return cmd
}
