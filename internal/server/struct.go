package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/resumechat/internal/collection"
	"github.com/54b3r/resumechat/internal/queue"
	"github.com/54b3r/resumechat/internal/store"
	"github.com/54b3r/resumechat/internal/upload"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request, including
	// multipart upload bodies.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing a response. /chat
	// streams use ChatTimeout plus a grace period instead.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single /chat exchange. Zero disables the bound.
	ChatTimeout time.Duration
	// MaxUploadBytes caps the whole /upload request body. Defaults to 200 MiB.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /upload and
	// /chat (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// TrustProxyHeaders keys rate limiting on X-Forwarded-For. Enable only
	// behind a reverse proxy that sets the header.
	TrustProxyHeaders bool
	// APIKey is the Bearer token required on /upload, /chat, and /batches.
	// If empty, authentication is disabled.
	APIKey string
	// CORSAllowedOrigins is the browser origin allow-list.
	CORSAllowedOrigins []string
	// MetricsRegistry receives the server metrics. If nil,
	// prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. If nil,
	// prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// Chatter is one agent able to answer a chat message. *agent.Handle
// satisfies it.
type Chatter interface {
	// Stream answers message, calling emit with each incremental fragment.
	Stream(ctx context.Context, message string, emit func(delta string) error) error
	// Collection is the collection the agent searches.
	Collection() string
}

// AgentSource returns the currently installed agent, or an error when none
// is ready yet.
type AgentSource func() (Chatter, error)

// Uploader accepts upload batches. *upload.Receiver satisfies it.
type Uploader interface {
	// Receive stages, enqueues, and activates one batch.
	Receive(ctx context.Context, parts []upload.Part) (upload.Receipt, error)
	// Announce publishes the accepted batch once the response is written.
	Announce(rc upload.Receipt)
	// MaxFileBytes is the per-file size limit.
	MaxFileBytes() int64
}

// ResultReader resolves a batch to its ingestion result. *queue.Client
// satisfies it.
type ResultReader interface {
	BatchResult(ctx context.Context, batchID string) (queue.Result, error)
}

// Deps are the application components the handlers drive.
type Deps struct {
	// Agents returns the live chat agent. Required.
	Agents AgentSource
	// Uploads accepts resume batches. Required.
	Uploads Uploader
	// Results reads ingestion outcomes for GET /batches/{id}. Required.
	Results ResultReader
	// Ledger holds recorded batches. Optional.
	Ledger store.Ledger
	// Registry reports the active collection. Optional.
	Registry *collection.Registry
}

// Server is the HTTP API of the resume chat service.
type Server struct {
	// deps are the components handlers delegate to.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped handler tree.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	// Message is the user's natural language question.
	Message string `json:"message"`
	// Stream selects incremental output. Defaults to true when omitted.
	Stream *bool `json:"stream,omitempty"`
}

// chatChunk is one NDJSON line of a /chat response.
type chatChunk struct {
	Chunk string `json:"chunk"`
}

// errorBody is the JSON error shape, also the terminal NDJSON line of a
// failed chat stream.
type errorBody struct {
	Error string `json:"error"`
}

// uploadResponse is the JSON response for POST /upload.
type uploadResponse struct {
	Status    string   `json:"status"`
	BatchID   string   `json:"batch_id"`
	FilePaths []string `json:"file_paths"`
	Message   string   `json:"message"`
}

// batchResponse is the JSON response for GET /batches/{id}.
type batchResponse struct {
	BatchID    string     `json:"batch_id"`
	JobID      string     `json:"job_id,omitempty"`
	Active     bool       `json:"active"`
	Status     string     `json:"status"`
	Summary    string     `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
	FilePaths  []string   `json:"file_paths,omitempty"`
	Files      int        `json:"files"`
	Chunks     int        `json:"chunks"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
