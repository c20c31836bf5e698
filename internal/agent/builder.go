package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/resumechat/internal/collection"
	"github.com/54b3r/resumechat/internal/searchtool"
	"github.com/54b3r/resumechat/internal/tools"
)

// DefaultMaxStep bounds the ReAct loop (model and tool nodes combined).
const DefaultMaxStep = 12

// ToolSource supplies the remote tool descriptors and executes calls to them.
// *searchtool.Connector satisfies it.
type ToolSource interface {
	tools.Caller

	// Tools lists the tool descriptors the remote server advertises.
	Tools(ctx context.Context) ([]mcp.Tool, error)
}

// ModelFactory constructs a fresh chat model for each new agent.
type ModelFactory func(ctx context.Context) (model.ToolCallingChatModel, error)

// Config holds the dependencies required to construct a Builder.
type Config struct {
	// Models constructs the chat model. Called once per Build.
	Models ModelFactory

	// Tools supplies the search tool. Descriptors are fetched on every Build
	// so a restarted search process is picked up by the next initialization.
	Tools ToolSource

	// MaxStep bounds the ReAct loop. Defaults to DefaultMaxStep if zero.
	MaxStep int
}

// Builder constructs Handles bound to a collection scope.
type Builder struct {
	models  ModelFactory
	source  ToolSource
	maxStep int
}

// NewBuilder validates cfg and returns a Builder.
func NewBuilder(cfg *Config) (*Builder, error) {
	if cfg == nil || cfg.Models == nil {
		return nil, fmt.Errorf("agent: Models must not be nil")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("agent: Tools must not be nil")
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	return &Builder{models: cfg.Models, source: cfg.Tools, maxStep: maxStep}, nil
}

// Build fetches the remote tools, constructs a chat model, and assembles a
// new ReAct agent instructed with and pinned to scope's collection.
func (b *Builder) Build(ctx context.Context, scope collection.Scope) (*Handle, error) {
	descriptors, err := b.source.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: fetch tools: %w", err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("agent: search tool advertised no tools")
	}

	chatModel, err := b.models(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: chat model: %w", err)
	}

	agentTools := tools.FromDescriptors(b.source, descriptors, tools.Pinned{
		searchtool.ArgCollection: scope.Collection,
	})

	loop, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: agentTools,
		},
		MaxStep: b.maxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	return &Handle{
		scope:   scope,
		loop:    loop,
		tools:   toolNames(descriptors),
		builtAt: time.Now(),
	}, nil
}

func toolNames(descriptors []mcp.Tool) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

