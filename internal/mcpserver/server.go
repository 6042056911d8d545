// Package mcpserver exposes the tool catalogue over the Model Context
// Protocol so MCP-capable assistants can call bookkeeping tools directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kaysia/kasa/internal/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const instructions = `Bookkeeping tools for debts, incomes, expenses, savings, invoices and taxes.
Tools that change data return status "proposed" with a preview unless called
with "dryRun": false. Show the preview to the user and only repeat the call
with "dryRun": false after they confirm.`

// New builds an MCP server with one MCP tool per registered definition.
// Schemas are passed through unchanged and every result is the JSON
// envelope as text; error envelopes set isError.
func New(d *tool.Dispatcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"kasa",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, def := range d.Registry().Definitions() {
		s.AddTool(toMCPTool(def), handler(d, def.Name))
	}
	return s
}

func toMCPTool(def tool.Definition) mcp.Tool {
	t := mcp.NewToolWithRawSchema(def.Name, def.Description, def.Schema)
	t.Annotations.ReadOnlyHint = mcp.ToBoolPtr(!def.Mutating)
	t.Annotations.DestructiveHint = mcp.ToBoolPtr(def.Destructive)
	return t
}

func handler(d *tool.Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("arguments: %v", err)), nil
		}
		env := d.Invoke(ctx, name, raw)
		text, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: marshal envelope: %w", err)
		}
		if env.Status == tool.StatusError {
			return mcp.NewToolResultError(string(text)), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

// ServeStdio runs s on the given streams until ctx is cancelled or in is
// closed.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	if err := server.NewStdioServer(s).Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}
