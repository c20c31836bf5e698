// Package tools adapts remote MCP tools into Eino tools the chat agent can
// register. Arguments the agent must not control, such as the collection a
// search runs against, are pinned when the tool is built and overwrite
// whatever the model supplies.
package tools

import (
	"context"
)

// Caller is the interface for invoking a tool on a remote MCP server.
// Abstracting this allows tests to inject a fake without a live server.
// *searchtool.Connector satisfies it.
type Caller interface {
	// CallTool invokes the named tool with args and returns its text output.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Pinned holds argument values fixed at build time, keyed by argument name.
type Pinned map[string]any
