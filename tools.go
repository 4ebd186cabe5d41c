package main

// tools.go: MCP tool registration wiring each tool name to its handler.

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

type fileArg struct {
	File string `json:"file" jsonschema:"path to the .prl file"`
}

// registerTools registers all MCP tools on the server.
func registerTools(server *mcp.Server, s *redprl.Session) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "redprl_check",
		Description: "Run RedPRL on a .prl file as it is on disk. Returns diagnostics, remaining obligations with their goals, and declared symbols. Call again after editing the file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return redprl.DoCheck(ctx, s, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "redprl_diagnostics",
		Description: "Show the diagnostics cached for a file from earlier checks. Diagnostics for a file may come from checking another file that imports it.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return redprl.DoDiagnostics(s, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "redprl_symbols",
		Description: "List the definitions, tactics and theorems declared in a file. Checks the file first if it was never checked.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return redprl.DoSymbols(ctx, s, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "redprl_obligations",
		Description: "List the remaining proof obligations in a file, each with its goal breakdown. Checks the file first if it was never checked.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return redprl.DoObligations(ctx, s, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "redprl_reset",
		Description: "Forget everything cached for a file, including diagnostics it reported for other files.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return redprl.DoReset(s, args.File)
	})
}
