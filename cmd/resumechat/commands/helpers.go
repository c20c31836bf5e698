package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/embedder"
	"github.com/54b3r/resumechat/internal/ingestion"
	"github.com/54b3r/resumechat/internal/queue"
	"github.com/54b3r/resumechat/internal/rag"
	"github.com/54b3r/resumechat/internal/store"
)

// defaultBrokerURL is used when QUEUE_BROKER_URL is unset.
const defaultBrokerURL = "redis://localhost:6379/0"

// openQueue connects to the task broker and result backend.
func openQueue() (*queue.Client, error) {
	return queue.NewClient(queue.Options{
		BrokerURL:        config.String("QUEUE_BROKER_URL", defaultBrokerURL),
		ResultBackendURL: config.String("QUEUE_RESULT_BACKEND_URL", ""),
		ResultTTL:        config.Duration("RESULT_TTL", queue.DefaultResultTTL),
	})
}

// openLedger opens the batch ledger. RESUMECHAT_LEDGER_DB overrides the
// default path (~/.resumechat/ledger.db); "disabled" turns it off. A ledger
// that cannot be opened is logged and skipped, never fatal.
func openLedger(log *slog.Logger) (store.Ledger, func()) {
	noop := func() {}

	dbPath := config.String("RESUMECHAT_LEDGER_DB", "")
	if dbPath == "disabled" {
		log.Info("ledger: disabled via RESUMECHAT_LEDGER_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("ledger: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
		dbPath = p
	}

	s, err := store.Open(dbPath)
	if err != nil {
		log.Warn("ledger: failed to open store, disabling", slog.String("path", dbPath), slog.Any("error", err))
		return nil, noop
	}
	log.Info("ledger: store opened", slog.String("path", dbPath))
	return s, func() { _ = s.Close() }
}

// openRetrieval builds the embedder and the vector store selected by the
// environment. The store is sized to the embedder's output dimensionality.
// shared rejects backends other processes cannot read.
func openRetrieval(ctx context.Context, log *slog.Logger, shared bool) (rag.Embedder, rag.VectorStore, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	backend := embedder.Backend()
	dims := embedder.DefaultDimensions(backend)

	open := rag.NewStoreFromEnv
	if shared {
		open = rag.NewSharedStoreFromEnv
	}
	vs, err := open(ctx, dims)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	log.Info("retrieval ready",
		slog.String("embedding_backend", backend),
		slog.Int("dimensions", dims),
		slog.String("vector_backend", rag.Backend()),
	)
	return emb, vs, nil
}

// ingestionConfig reads the chunking settings.
func ingestionConfig() *ingestion.Config {
	return &ingestion.Config{
		ChunkSize:    config.Int("CHUNK_SIZE", ingestion.DefaultChunkSize),
		ChunkOverlap: config.Int("CHUNK_OVERLAP", ingestion.DefaultChunkOverlap),
	}
}

// serveMetrics exposes g on addr/metrics until ctx is cancelled. An empty
// addr disables the listener.
func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, log *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
