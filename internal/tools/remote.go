package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/searchtool"
)

// RemoteTool is an Eino tool backed by a tool on a remote MCP server.
type RemoteTool struct {
	// caller forwards invocations to the remote server.
	caller Caller

	// descriptor is the tool schema as advertised by tools/list.
	descriptor mcp.Tool

	// pinned overrides model-supplied arguments. Only arguments the
	// descriptor declares are kept.
	pinned Pinned
}

// NewRemoteTool wraps descriptor as an Eino tool. Entries of pinned that
// descriptor does not declare are ignored.
func NewRemoteTool(caller Caller, descriptor mcp.Tool, pinned Pinned) *RemoteTool {
	own := Pinned{}
	for k, v := range pinned {
		if _, ok := descriptor.InputSchema.Properties[k]; ok {
			own[k] = v
		}
	}
	return &RemoteTool{caller: caller, descriptor: descriptor, pinned: own}
}

// FromDescriptors wraps every descriptor as an Eino tool sharing caller and pinned.
func FromDescriptors(caller Caller, descriptors []mcp.Tool, pinned Pinned) []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, NewRemoteTool(caller, d, pinned))
	}
	return out
}

// Name returns the remote tool name.
func (t *RemoteTool) Name() string { return t.descriptor.Name }

// Pinned returns a copy of the arguments this tool fixes.
func (t *RemoteTool) Pinned() Pinned {
	out := make(Pinned, len(t.pinned))
	for k, v := range t.pinned {
		out[k] = v
	}
	return out
}

// Info returns the Eino tool metadata translated from the MCP input schema.
func (t *RemoteTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	required := make(map[string]bool, len(t.descriptor.InputSchema.Required))
	for _, name := range t.descriptor.InputSchema.Required {
		required[name] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(t.descriptor.InputSchema.Properties))
	for name, raw := range t.descriptor.InputSchema.Properties {
		p := parameterInfo(raw)
		p.Required = required[name]
		params[name] = p
	}

	return &schema.ToolInfo{
		Name:        t.descriptor.Name,
		Desc:        t.descriptor.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun decodes the model's arguments, applies the pinned values,
// and forwards the call to the remote server. An error reported by the
// remote tool itself is returned as the tool output so the model can react
// to it; transport failures are returned as errors.
func (t *RemoteTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	args := map[string]any{}
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("%s: invalid input: %w", t.descriptor.Name, err)
		}
	}

	for k, v := range t.pinned {
		if got, ok := args[k]; ok && fmt.Sprint(got) != fmt.Sprint(v) {
			logging.FromContext(ctx).Debug("tools: overriding model-supplied argument",
				slog.String("tool", t.descriptor.Name),
				slog.String("arg", k),
				slog.Any("supplied", got),
			)
		}
		args[k] = v
	}

	out, err := t.caller.CallTool(ctx, t.descriptor.Name, args)
	switch {
	case errors.Is(err, searchtool.ErrToolFailed):
		logging.FromContext(ctx).Warn("tools: remote tool returned an error",
			slog.String("tool", t.descriptor.Name),
			slog.Any("error", err),
		)
		return "Error: " + err.Error(), nil
	case err != nil:
		return "", fmt.Errorf("%s: %w", t.descriptor.Name, err)
	}
	if out == "" {
		return "No matching results.", nil
	}
	return out, nil
}

// parameterInfo translates one JSON-schema property into an Eino parameter.
func parameterInfo(raw any) *schema.ParameterInfo {
	prop, _ := raw.(map[string]any)
	p := &schema.ParameterInfo{Type: dataType(prop["type"])}
	if desc, ok := prop["description"].(string); ok {
		p.Desc = desc
	}
	if enum, ok := prop["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	}
	if p.Type == schema.Array {
		p.ElemInfo = parameterInfo(prop["items"])
	}
	return p
}

func dataType(v any) schema.DataType {
	switch v {
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
