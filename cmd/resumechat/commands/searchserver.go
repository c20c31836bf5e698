package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/resumechat/internal/budget"
	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/rag"
	"github.com/54b3r/resumechat/internal/searchtool"
)

// NewSearchServerCmd constructs the `resumechat search-server` command,
// which serves the search_resumes tool over MCP streamable HTTP.
func NewSearchServerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "search-server",
		Short: "Serve the search_resumes MCP tool",
		Long: `Serve the search_resumes tool over MCP streamable HTTP at /mcp.

search_resumes(query, collection_name, top_k=5) embeds the query and returns
the best-matching resume chunks of the named collection. It never reads
outside that collection. VECTOR_BACKEND must be pgvector or qdrant; the
memory backend would never see the worker's chunks and is refused.

Examples:
  resumechat search-server
  resumechat search-server --addr :8005`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if addr == "" {
				addr = config.String("SEARCH_TOOL_ADDR", searchtool.DefaultAddr)
			}

			emb, vs, err := openRetrieval(ctx, log, true)
			if err != nil {
				return fmt.Errorf("search-server: %w", err)
			}
			defer func() { _ = vs.Close() }()

			retriever, err := rag.NewRetriever(emb, vs, searchtool.DefaultTopK)
			if err != nil {
				return fmt.Errorf("search-server: %w", err)
			}

			srv, err := searchtool.NewServer(retriever, searchtool.Options{
				MaxTopK:    config.Int("SEARCH_MAX_TOP_K", searchtool.DefaultMaxTopK),
				MaxTokens:  config.Int("SEARCH_MAX_TOKENS", budget.DefaultMaxSearchTokens),
				Logger:     log,
				Registerer: prometheus.DefaultRegisterer,
				Gatherer:   prometheus.DefaultGatherer,
			})
			if err != nil {
				return fmt.Errorf("search-server: %w", err)
			}

			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: SEARCH_TOOL_ADDR or :8005)")

	return cmd
}
