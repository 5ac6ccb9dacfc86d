package mcpgateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hosted-tools/mcp-gateway/pkg/registry"
)

// invoke runs one tool handler and normalizes whatever happens into a
// protocol result. A handler failure, panics included, becomes a result
// with isError set; it never surfaces as a protocol error.
func (g *Gateway) invoke(ctx context.Context, name string, handler registry.ToolHandler, args map[string]any, caller registry.Caller) (result any) {
	defer func() {
		if r := recover(); r != nil {
			g.opts.Logger.Error("tool handler panicked", "tool", name, "panic", r)
			result = errorResult(fmt.Sprintf("tool %q panicked: %v", name, r))
		}
	}()

	out, err := handler(ctx, args, caller)
	if err != nil {
		return errorResult(err.Error())
	}

	// Results that already speak the protocol pass through untouched;
	// anything else is wrapped into a single text block.
	switch v := out.(type) {
	case *mcp.CallToolResult:
		if v != nil {
			return v
		}
	case map[string]any:
		if _, ok := v["content"]; ok {
			return v
		}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return errorResult(fmt.Sprintf("tool %q returned an unserializable result: %v", name, err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(encoded)}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}
