package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/resumechat/internal/agent"
	"github.com/54b3r/resumechat/internal/collection"
	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/events"
	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/provider"
	"github.com/54b3r/resumechat/internal/searchtool"
	"github.com/54b3r/resumechat/internal/server"
	"github.com/54b3r/resumechat/internal/tracing"
	"github.com/54b3r/resumechat/internal/upload"
)

// NewServeCmd constructs the `resumechat serve` command, which starts the
// HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the resumechat HTTP API",
		Long: `Start the resumechat HTTP API.

POST /upload stages a batch of PDF resumes, enqueues one ingestion job for the
worker, and makes the batch the active collection. A new chat agent bound to
that collection is built in the background. POST /chat streams the agent's
answer as NDJSON; it returns 503 until the first agent is ready.

The agent reaches the vector store only through the search tool server
(resumechat search-server) at SEARCH_TOOL_URL.

Examples:
  resumechat serve
  resumechat serve --port 9000
  MODEL_PROVIDER=openai resumechat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if host == "" {
				host = config.String("RESUMECHAT_HOST", "127.0.0.1")
			}
			if port == 0 {
				port = config.Int("RESUMECHAT_PORT", 8000)
			}

			providerCfg := provider.ConfigFromEnv()
			if err := providerCfg.Validate(); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("serve starting",
				slog.String("provider", string(providerCfg.Backend)),
				slog.String("model", providerCfg.ModelName()),
			)

			defer tracing.Install("api", log)()

			q, err := openQueue()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = q.Close() }()

			ledger, closeLedger := openLedger(log)
			defer closeLedger()

			stager, err := upload.NewStager(
				config.String("UPLOAD_DIR", upload.DefaultDir),
				int64(config.Int("UPLOAD_MAX_BYTES", int(upload.DefaultMaxBytes))),
			)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			bus := events.NewBus(log)
			defer func() { _ = bus.Close() }()

			registry := collection.NewRegistry(collection.Default)

			receiver, err := upload.NewReceiver(&upload.Config{
				Stager:   stager,
				Queue:    q,
				Registry: registry,
				Ledger:   ledger,
				Events:   bus,
				Logger:   log,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			search := searchtool.NewConnector(config.String("SEARCH_TOOL_URL", searchtool.DefaultURL), log)
			defer func() { _ = search.Close() }()

			builder, err := agent.NewBuilder(&agent.Config{
				Models: func(ctx context.Context) (model.ToolCallingChatModel, error) {
					return provider.New(ctx, providerCfg)
				},
				Tools:   search,
				MaxStep: config.Int("AGENT_MAX_STEP", agent.DefaultMaxStep),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			manager := agent.NewManager(registry, builder, prometheus.DefaultRegisterer, log)

			initTimeout := config.Duration("AGENT_INIT_TIMEOUT", 60*time.Second)

			// The first agent is built at startup against the default
			// collection. A failure leaves /chat at 503 until the next upload.
			if err := manager.Reinitialize(ctx, initTimeout); err != nil {
				log.Warn("initial agent build failed, chat unavailable until next upload", slog.Any("error", err))
			}

			if err := bus.SubscribeBatchQueued(ctx, func(ctx context.Context, ev events.BatchQueued) error {
				logging.FromContext(ctx).Info("rebuilding agent for new batch", slog.String("batch_id", ev.BatchID))
				return manager.Reinitialize(ctx, initTimeout)
			}); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			srv, err := server.New(server.Deps{
				Agents: func() (server.Chatter, error) {
					h, err := manager.Current()
					if err != nil {
						return nil, err
					}
					return h, nil
				},
				Uploads:  receiver,
				Results:  q,
				Ledger:   ledger,
				Registry: registry,
			}, &server.Config{
				Host:               host,
				Port:               port,
				ChatTimeout:        config.Duration("CHAT_TIMEOUT", 5*time.Minute),
				Logger:             log,
				APIKey:             config.String("RESUMECHAT_API_KEY", ""),
				TrustProxyHeaders:  config.Bool("RESUMECHAT_TRUST_PROXY"),
				CORSAllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", server.DefaultCORSOrigins),
				Pingers: []server.Pinger{
					server.NamedPinger("redis", q),
					search,
					manager,
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: RESUMECHAT_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: RESUMECHAT_PORT or 8000)")

	return cmd
}
