package searchtool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/resumechat/internal/version"
)

// DefaultURL is the search tool endpoint used when SEARCH_TOOL_URL is unset.
const DefaultURL = "http://localhost:8005/mcp"

// ErrToolFailed wraps an error result reported by the remote tool.
var ErrToolFailed = errors.New("searchtool: tool reported an error")

// dialFunc opens a started but uninitialised MCP client.
type dialFunc func(ctx context.Context) (*client.Client, error)

// Connector is the chat side of the search tool. It connects lazily on first
// use and drops the session after a transport failure so the next call
// reconnects. It is safe for concurrent use.
type Connector struct {
	// url is the streamable HTTP endpoint of the search tool.
	url string
	// dial opens a new client session.
	dial dialFunc
	// log receives connection lifecycle events.
	log *slog.Logger

	mu     sync.Mutex
	client *client.Client
}

// NewConnector returns a Connector for the MCP endpoint at url.
func NewConnector(url string, log *slog.Logger) *Connector {
	if url == "" {
		url = DefaultURL
	}
	c := &Connector{url: url, log: log}
	c.dial = func(ctx context.Context) (*client.Client, error) {
		cl, err := client.NewStreamableHttpClient(c.url)
		if err != nil {
			return nil, err
		}
		if err := cl.Start(ctx); err != nil {
			_ = cl.Close()
			return nil, err
		}
		return cl, nil
	}
	return c
}

// URL returns the endpoint the connector talks to.
func (c *Connector) URL() string { return c.url }

// session returns the live client, connecting and initialising one if needed.
func (c *Connector) session(ctx context.Context) (*client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	cl, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("searchtool: connect %s: %w", c.url, err)
	}

	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "resumechat", Version: version.Version}
	res, err := cl.Initialize(ctx, init)
	if err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("searchtool: initialize %s: %w", c.url, err)
	}
	c.log.Info("search tool connected",
		slog.String("url", c.url),
		slog.String("server", res.ServerInfo.Name),
	)
	c.client = cl
	return cl, nil
}

// reset discards cl if it is still the current session.
func (c *Connector) reset(cl *client.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == cl {
		_ = c.client.Close()
		c.client = nil
	}
}

// Tools lists the tool descriptors the search tool advertises.
func (c *Connector) Tools(ctx context.Context) ([]mcp.Tool, error) {
	cl, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.reset(cl)
		return nil, fmt.Errorf("searchtool: list tools: %w", err)
	}
	return res.Tools, nil
}

// call invokes a remote tool and returns the text items of its result.
func (c *Connector) call(ctx context.Context, name string, args map[string]any) ([]string, error) {
	cl, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := cl.CallTool(ctx, req)
	if err != nil {
		// A cancelled caller says nothing about the session's health.
		if ctx.Err() == nil {
			c.reset(cl)
		}
		return nil, fmt.Errorf("searchtool: call %s: %w", name, err)
	}

	texts := textContent(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("%w: %s: %s", ErrToolFailed, name, strings.Join(texts, "; "))
	}
	return texts, nil
}

// CallTool invokes the named tool and joins its text results with blank lines.
func (c *Connector) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	texts, err := c.call(ctx, name, args)
	if err != nil {
		return "", err
	}
	return strings.Join(texts, "\n\n"), nil
}

// Search runs search_resumes against collection and returns the matching
// chunk texts, best first.
func (c *Connector) Search(ctx context.Context, collection, query string, topK int) ([]string, error) {
	return c.call(ctx, ToolName, map[string]any{
		ArgQuery:      query,
		ArgCollection: collection,
		ArgTopK:       topK,
	})
}

// Name identifies the connector in readiness output.
func (c *Connector) Name() string { return "search_tool" }

// Ping checks the search tool is reachable.
func (c *Connector) Ping(ctx context.Context) error {
	cl, err := c.session(ctx)
	if err != nil {
		return err
	}
	if err := cl.Ping(ctx); err != nil {
		c.reset(cl)
		return fmt.Errorf("searchtool: ping: %w", err)
	}
	return nil
}

// Close ends the current session, if any.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// textContent extracts the text items of a tool result in order.
func textContent(content []mcp.Content) []string {
	out := make([]string, 0, len(content))
	for _, item := range content {
		switch tc := item.(type) {
		case mcp.TextContent:
			out = append(out, tc.Text)
		case *mcp.TextContent:
			out = append(out, tc.Text)
		}
	}
	return out
}
