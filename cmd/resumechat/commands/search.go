package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/searchtool"
)

// NewSearchCmd constructs the `resumechat search` command, which calls the
// search_resumes tool once through the MCP endpoint and prints the chunks.
func NewSearchCmd() *cobra.Command {
	var collectionName string
	var topK int
	var url string

	cmd := &cobra.Command{
		Use:   "search [flags] QUERY",
		Short: "Query a collection through the search tool server",
		Long: `Call search_resumes once against a running search tool server and print
the matching chunks, best first. Useful for checking what the agent sees.

Examples:
  resumechat search --collection 3f2a... "kubernetes operators"
  resumechat search -c demo -k 3 "who has led a team?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if collectionName == "" {
				return fmt.Errorf("search: --collection is required")
			}
			if url == "" {
				url = config.String("SEARCH_TOOL_URL", searchtool.DefaultURL)
			}

			conn := searchtool.NewConnector(url, log)
			defer func() { _ = conn.Close() }()

			chunks, err := conn.Search(ctx, collectionName, strings.Join(args, " "), topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(chunks) == 0 {
				fmt.Fprintln(out, "No matching results.")
				return nil
			}
			for i, c := range chunks {
				fmt.Fprintf(out, "--- %d ---\n%s\n", i+1, c)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collectionName, "collection", "c", "", "Collection (batch id) to search")
	cmd.Flags().IntVarP(&topK, "top-k", "k", searchtool.DefaultTopK, "Maximum number of chunks to return")
	cmd.Flags().StringVar(&url, "url", "", "Search tool endpoint (default: SEARCH_TOOL_URL or "+searchtool.DefaultURL+")")

	return cmd
}
