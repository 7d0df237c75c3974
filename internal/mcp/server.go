// Package mcp exposes the memory service as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Server identity reported during initialization.
const (
	ServerName    = "recall"
	ServerVersion = "1.0.0"
	DefaultPath   = "/mcp"
)

// MemoryService is the subset of memory.Service the tools call.
type MemoryService interface {
	AddMemory(ctx context.Context, content, category string) bool
	SearchMemories(ctx context.Context, query string, opts memory.SearchOptions) []memory.Match
	UpdateMemory(ctx context.Context, id int64, content string) bool
	DeleteMemory(ctx context.Context, id int64) bool
	ListMemories(ctx context.Context, limit int) []memory.Record
}

// WebSearcher runs web searches for the web_search tool.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]types.WebSearchResult, error)
}

// Options configures the MCP server.
type Options struct {
	// Search enables the web_search tool when set.
	Search WebSearcher
	Logger *slog.Logger
}

// NewServer builds an MCP server with the memory tools registered.
func NewServer(svc MemoryService, opts Options) *server.MCPServer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	t := &tools{svc: svc, search: opts.Search, logger: opts.Logger}
	for _, def := range t.definitions() {
		s.AddTool(def.tool, instrument(def.tool.Name, def.handler))
	}
	return s
}

// Handler serves s over streamable HTTP at path.
func Handler(s *server.MCPServer, path string) http.Handler {
	if path == "" {
		path = DefaultPath
	}
	return server.NewStreamableHTTPServer(s, server.WithEndpointPath(path))
}
