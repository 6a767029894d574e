package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jheinecke/valet/internal/storage"
	"github.com/jheinecke/valet/internal/tools"
)

// NewMCPServer mirrors the tool registry as an MCP server so external agents
// can call the same tools the model does.
func NewMCPServer(registry *tools.Registry, store *storage.Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"valet",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Personal assistant tools: facts, documents and smart home control."),
		server.WithRecovery(),
	)

	for _, def := range registry.Definitions() {
		opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
		for _, p := range def.Params {
			opts = append(opts, mcp.WithString(p.Name, mcp.Required(), mcp.Description(p.Description)))
		}

		name := def.Name
		s.AddTool(mcp.NewTool(name, opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]string{}
			for _, p := range def.Params {
				if v := req.GetString(p.Name, ""); v != "" {
					args[p.Name] = v
				}
			}
			out, err := registry.Invoke(ctx, name, args)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			return mcpText(out), nil
		})
	}

	s.AddResource(
		mcp.NewResource("learning://statistics", "Feedback statistics",
			mcp.WithResourceDescription("Aggregated feedback and correction counts"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			stats, err := store.Statistics()
			if err != nil {
				return nil, fmt.Errorf("read statistics: %w", err)
			}
			data, err := json.Marshal(stats)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      "learning://statistics",
					MIMEType: "application/json",
					Text:     string(data),
				},
			}, nil
		},
	)

	return s
}

// ServeMCPStdio runs the MCP server over stdio until ctx is done.
func ServeMCPStdio(ctx context.Context, s *server.MCPServer) error {
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func mcpError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
