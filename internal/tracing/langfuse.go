// Package tracing wires opt-in Langfuse tracing into every Eino component
// the process runs (chat models, tools, the ReAct graph).
package tracing

import (
	"log/slog"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/version"
)

// DefaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. Returns a flush function that must be called
// before process exit to ensure all traces are sent. If Langfuse is not
// configured, both return values are nil and ok is false.
func Setup(component string) (handler callbacks.Handler, flush func(), ok bool) {
	publicKey := config.String("LANGFUSE_PUBLIC_KEY", "")
	secretKey := config.String("LANGFUSE_SECRET_KEY", "")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      config.String("LANGFUSE_HOST", DefaultHost),
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "resumechat-" + component,
		Release:   version.Version,
	})
	return handler, flush, true
}

// Install registers the Langfuse handler globally when configured and
// returns the flush function to defer. The returned function is never nil.
func Install(component string, log *slog.Logger) func() {
	handler, flush, ok := Setup(component)
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled", slog.String("host", config.String("LANGFUSE_HOST", DefaultHost)))
	return flush
}
