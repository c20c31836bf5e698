// Package searchtool implements the semantic resume search tool: an MCP
// server named resume-mcp that exposes search_resumes over streamable HTTP,
// and the client-side Connector the chat agent uses to reach it.
package searchtool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/resumechat/internal/budget"
	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/rag"
	"github.com/54b3r/resumechat/internal/version"
)

const (
	// ServerName is the MCP implementation name advertised on initialize.
	ServerName = "resume-mcp"
	// ToolName is the name of the single tool the server exposes.
	ToolName = "search_resumes"
	// EndpointPath is the HTTP path of the streamable MCP endpoint.
	EndpointPath = "/mcp"
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8005"
	// DefaultTopK is the result count when the caller omits top_k.
	DefaultTopK = 5
	// DefaultMaxTopK caps top_k unless overridden via SEARCH_MAX_TOP_K.
	DefaultMaxTopK = 20

	// Tool argument names.
	ArgQuery      = "query"
	ArgCollection = "collection_name"
	ArgTopK       = "top_k"
)

// ErrInvalidTopK is returned when top_k is below 1.
var ErrInvalidTopK = errors.New("searchtool: top_k must be >= 1")

// Options tunes a Server. Zero values select the defaults.
type Options struct {
	// MaxTopK caps the number of chunks one call may return.
	MaxTopK int
	// MaxTokens bounds the estimated size of one result set. Lower-ranked
	// chunks are dropped to fit. Non-positive disables trimming.
	MaxTokens int
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
	// Logger is used for request logging. If nil, [logging.New] is used.
	Logger *slog.Logger
	// Registerer receives the search metrics. If nil, prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer
	// Gatherer, when set, is served on GET /metrics.
	Gatherer prometheus.Gatherer
}

// Server serves search_resumes over MCP.
type Server struct {
	retriever rag.Retriever
	opts      Options
	log       *slog.Logger
	mcp       *server.MCPServer
	metrics   *searchMetrics
}

// NewServer constructs a Server that answers searches with retriever.
func NewServer(retriever rag.Retriever, opts Options) (*Server, error) {
	if retriever == nil {
		return nil, fmt.Errorf("searchtool: retriever must not be nil")
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultMaxTopK
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.New()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	s := &Server{
		retriever: retriever,
		opts:      opts,
		log:       opts.Logger,
		metrics:   newSearchMetrics(opts.Registerer),
	}

	s.mcp = server.NewMCPServer(ServerName, version.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcp.AddTool(searchToolDescriptor(), s.handleSearch)
	return s, nil
}

// searchToolDescriptor is the schema advertised through tools/list.
func searchToolDescriptor() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Semantic search over the resumes of one upload batch. "+
			"Returns the most relevant resume excerpts, best match first."),
		mcp.WithString(ArgQuery,
			mcp.Required(),
			mcp.Description("Natural language description of what to look for."),
		),
		mcp.WithString(ArgCollection,
			mcp.Required(),
			mcp.Description("Name of the resume collection to search."),
		),
		mcp.WithNumber(ArgTopK,
			mcp.Description("Maximum number of excerpts to return."),
			mcp.DefaultNumber(DefaultTopK),
			mcp.Min(1),
		),
	)
}

// MCPServer exposes the underlying MCP server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Search returns the text of the topK chunks of collection most similar to
// query, best first, trimmed to the configured token budget. An unknown
// collection yields an empty slice.
func (s *Server) Search(ctx context.Context, collection, query string, topK int) ([]string, error) {
	if query == "" {
		return nil, fmt.Errorf("searchtool: %s is required", ArgQuery)
	}
	if collection == "" {
		return nil, fmt.Errorf("searchtool: %s is required", ArgCollection)
	}
	if topK < 1 {
		return nil, ErrInvalidTopK
	}
	if topK > s.opts.MaxTopK {
		topK = s.opts.MaxTopK
	}

	docs, err := s.retriever.Retrieve(ctx, collection, query, topK)
	if err != nil {
		return nil, fmt.Errorf("searchtool: retrieve: %w", err)
	}

	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Content)
	}
	kept := budget.TrimRanked(texts, s.opts.MaxTokens)
	if dropped := len(texts) - len(kept); dropped > 0 {
		s.log.Debug("searchtool: trimmed results to token budget",
			slog.Int("dropped", dropped),
			slog.Int("max_tokens", s.opts.MaxTokens),
		)
	}
	return kept, nil
}

// handleSearch is the MCP handler for search_resumes. Argument and search
// failures are reported as tool errors so the model can see them.
func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()

	query, err := req.RequireString(ArgQuery)
	if err != nil {
		s.metrics.observe("invalid", 0, start)
		return mcp.NewToolResultError(err.Error()), nil
	}
	collection, err := req.RequireString(ArgCollection)
	if err != nil {
		s.metrics.observe("invalid", 0, start)
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt(ArgTopK, DefaultTopK)

	texts, err := s.Search(ctx, collection, query, topK)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrInvalidTopK) {
			outcome = "invalid"
		}
		s.metrics.observe(outcome, 0, start)
		s.log.Warn("searchtool: search failed",
			slog.String("collection", collection),
			slog.Any("error", err),
		)
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.metrics.observe("ok", len(texts), start)
	s.log.Info("searchtool: search served",
		slog.String("collection", collection),
		slog.Int("top_k", topK),
		slog.Int("results", len(texts)),
		slog.Duration("duration", time.Since(start)),
	)

	content := make([]mcp.Content, 0, len(texts))
	for _, t := range texts {
		content = append(content, mcp.NewTextContent(t))
	}
	return &mcp.CallToolResult{Content: content}, nil
}

// Handler returns the HTTP handler tree for the search process: the
// streamable MCP endpoint and a liveness probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(EndpointPath),
	))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("search tool listening",
			slog.String("addr", addr),
			slog.String("endpoint", EndpointPath),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("searchtool: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("searchtool: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
