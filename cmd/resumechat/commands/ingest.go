package commands

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/resumechat/internal/ingestion"
	"github.com/54b3r/resumechat/internal/logging"
)

// NewIngestCmd constructs the `resumechat ingest` command, which ingests
// local PDF files into a collection synchronously, without the queue.
func NewIngestCmd() *cobra.Command {
	var collectionName string

	cmd := &cobra.Command{
		Use:   "ingest [flags] FILE.pdf...",
		Short: "Ingest local PDF resumes into a collection",
		Long: `Ingest local PDF resumes into a vector-store collection, in-process.

This runs the same extract, chunk, embed, and store pipeline as the worker
but skips the queue, which is useful for seeding a collection or debugging
extraction. When --collection is omitted a new batch id is generated and
printed. With VECTOR_BACKEND=memory the chunks are discarded on exit, which
only helps when checking extraction.

Examples:
  resumechat ingest ./resumes/alice.pdf ./resumes/bob.pdf
  resumechat ingest --collection demo ./resumes/*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if collectionName == "" {
				collectionName = uuid.NewString()
			}

			emb, vs, err := openRetrieval(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = vs.Close() }()

			pipeline, err := ingestion.NewPipeline(nil, emb, vs, ingestionConfig())
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.String("collection", collectionName), slog.Int("files", len(args)))

			res := pipeline.IngestBatch(ctx, collectionName, args, func(msg string) {
				log.Info(msg)
			})
			fmt.Fprintf(cmd.OutOrStdout(), "collection: %s\n%s\n", collectionName, res.Summary())
			if res.Status == ingestion.StatusFailure {
				return fmt.Errorf("ingest: %s", res.Summary())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collectionName, "collection", "c", "", "Collection to ingest into (default: a new batch id)")

	return cmd
}
