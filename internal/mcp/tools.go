package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Tool names.
const (
	ToolMemoryAdd    = "memory_add"
	ToolMemorySearch = "memory_search"
	ToolMemoryList   = "memory_list"
	ToolMemoryUpdate = "memory_update"
	ToolMemoryDelete = "memory_delete"
	ToolWebSearch    = "web_search"
)

type toolDef struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

type tools struct {
	svc    MemoryService
	search WebSearcher
	logger *slog.Logger
}

func (t *tools) definitions() []toolDef {
	defs := []toolDef{
		{
			tool: mcp.NewTool(ToolMemoryAdd,
				mcp.WithDescription("Store a fact about the user in long-term memory. Near-duplicates of existing memories are skipped."),
				mcp.WithString("content", mcp.Required(), mcp.Description("The fact to remember, at least 10 characters")),
				mcp.WithString("category", mcp.Description("Optional category, defaults to General")),
			),
			handler: t.add,
		},
		{
			tool: mcp.NewTool(ToolMemorySearch,
				mcp.WithDescription("Find stored memories relevant to a query, best match first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("What to look for")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
				mcp.WithNumber("threshold", mcp.Description("Minimum similarity score (default 0.35)")),
			),
			handler: t.searchMemories,
		},
		{
			tool: mcp.NewTool(ToolMemoryList,
				mcp.WithDescription("List stored memories, newest first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithNumber("limit", mcp.Description("Maximum number of memories (default 100)")),
			),
			handler: t.list,
		},
		{
			tool: mcp.NewTool(ToolMemoryUpdate,
				mcp.WithDescription("Replace the content of a stored memory."),
				mcp.WithNumber("id", mcp.Required(), mcp.Description("Memory id")),
				mcp.WithString("content", mcp.Required(), mcp.Description("New content, at least 10 characters")),
			),
			handler: t.update,
		},
		{
			tool: mcp.NewTool(ToolMemoryDelete,
				mcp.WithDescription("Delete a stored memory."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithNumber("id", mcp.Required(), mcp.Description("Memory id")),
			),
			handler: t.delete,
		},
	}
	if t.search != nil {
		defs = append(defs, toolDef{
			tool: mcp.NewTool(ToolWebSearch,
				mcp.WithDescription("Search the web and return titles, links and snippets."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithOpenWorldHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
			),
			handler: t.webSearch,
		})
	}
	return defs
}

func (t *tools) add(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok := t.svc.AddMemory(ctx, content, req.GetString("category", ""))
	return jsonResult(types.SuccessResponse{Success: ok})
}

func (t *tools) searchMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts memory.SearchOptions
	args := req.GetArguments()
	if _, ok := args["limit"]; ok {
		limit := req.GetInt("limit", memory.DefaultSearchLimit)
		opts.Limit = &limit
	}
	if _, ok := args["threshold"]; ok {
		threshold := req.GetFloat("threshold", memory.DefaultSearchThreshold)
		opts.Threshold = &threshold
	}

	matches := t.svc.SearchMemories(ctx, query, opts)
	return jsonResult(types.QueryResponse{Results: memory.QueryResults(matches)})
}

func (t *tools) list(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records := t.svc.ListMemories(ctx, req.GetInt("limit", 0))
	return jsonResult(types.MemoriesResponse{Memories: memory.Memories(records)})
}

func (t *tools) update(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.SuccessResponse{Success: t.svc.UpdateMemory(ctx, id, content)})
}

func (t *tools) delete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.SuccessResponse{Success: t.svc.DeleteMemory(ctx, id)})
}

func (t *tools) webSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := t.search.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types.WebSearchResponse{Results: results})
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireFloat("id")
	if err != nil {
		return 0, err
	}
	if id != float64(int64(id)) || id < 1 {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return int64(id), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// instrument records execution metrics for a tool handler.
func instrument(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		status := "success"
		if err != nil || (res != nil && res.IsError) {
			status = "error"
		}
		RecordToolExecution(name, status, time.Since(start))
		return res, err
	}
}
