// Package agent builds and serves the resume chat agent: an Eino ReAct loop
// whose only tools come from the search tool process, bound at construction
// to one collection.
//
// A Handle is immutable once built. The Manager replaces the process-wide
// Handle wholesale on every initialization (construct-then-swap), so a chat
// request that captured a Handle finishes on it even if a newer one is
// installed mid-stream.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	einoagent "github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/resumechat/internal/collection"
)

// systemPrompt is the base system prompt injected into every conversation.
const systemPrompt = `You are a recruiting assistant that answers questions about a set of
uploaded resumes.

- Use the search_resumes tool to find relevant resume excerpts before answering
  any question about candidates, skills, experience, or education.
- Ground every claim in the excerpts the tool returns. If the excerpts do not
  contain the answer, say so instead of guessing.
- When comparing candidates, name them and cite the evidence for each.
- Keep answers concise and structured.`

// collectionInstruction tells the model which collection its search tool is
// bound to.
const collectionInstruction = "The collection_name for the resume-mcp is: %s"

// Instruction returns the full system instruction for an agent bound to
// collectionName.
func Instruction(collectionName string) string {
	return systemPrompt + "\n\n" + fmt.Sprintf(collectionInstruction, collectionName)
}

// streamer is the subset of *react.Agent a Handle drives.
type streamer interface {
	Stream(ctx context.Context, input []*schema.Message, opts ...einoagent.AgentOption) (*schema.StreamReader[*schema.Message], error)
}

// Handle is one live agent bound to a single collection scope.
type Handle struct {
	// scope is the registry snapshot the handle was built for.
	scope collection.Scope

	// loop is the underlying Eino ReAct agent.
	loop streamer

	// tools lists the names of the tools registered with the loop.
	tools []string

	// builtAt records when construction finished.
	builtAt time.Time
}

// Scope returns the registry snapshot the handle is bound to.
func (h *Handle) Scope() collection.Scope { return h.scope }

// Collection returns the collection the handle searches.
func (h *Handle) Collection() string { return h.scope.Collection }

// Tools returns the names of the tools the agent can call.
func (h *Handle) Tools() []string { return append([]string(nil), h.tools...) }

// BuiltAt returns when the handle was constructed.
func (h *Handle) BuiltAt() time.Time { return h.builtAt }

// messages builds the conversation for one stateless exchange.
func (h *Handle) messages(userMessage string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(Instruction(h.scope.Collection)),
		schema.UserMessage(userMessage),
	}
}

// Stream runs the agent loop for userMessage and calls emit with every
// non-empty content delta of the final answer, in order. It returns when the
// loop completes, emit fails, or ctx is cancelled.
func (h *Handle) Stream(ctx context.Context, userMessage string, emit func(delta string) error) error {
	sr, err := h.loop.Stream(ctx, h.messages(userMessage))
	if err != nil {
		return fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		if err := emit(msg.Content); err != nil {
			return fmt.Errorf("agent: emit: %w", err)
		}
	}
}

// Generate runs the agent loop for userMessage and returns the full answer.
func (h *Handle) Generate(ctx context.Context, userMessage string) (string, error) {
	var sb strings.Builder
	err := h.Stream(ctx, userMessage, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
