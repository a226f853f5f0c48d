// Package mcp implements the Model Context Protocol (MCP) server for iter-service.
// MCP allows AI assistants like Claude to use iter-service as a tool provider,
// listing and searching every project the daemon has indexed.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lingcode/agentcore/internal/config"
	"github.com/lingcode/agentcore/internal/project"
	"github.com/lingcode/agentcore/pkg/index"
)

// Handler exposes iter-service's project registry over MCP. It mirrors the
// single-project server in index/mcp_server.go, but a project_id argument
// selects among every project the daemon manages instead of one fixed
// indexer, and tools are served over HTTP/SSE rather than stdio.
type Handler struct {
	cfg      *config.Config
	registry *project.Registry
	manager  *project.Manager

	mcpServer *server.MCPServer
	sse       *server.SSEServer
}

// NewHandler creates a new MCP handler backed by the given registry and manager.
func NewHandler(cfg *config.Config, registry *project.Registry, manager *project.Manager) *Handler {
	h := &Handler{
		cfg:      cfg,
		registry: registry,
		manager:  manager,
	}

	mcpServer := server.NewMCPServer(
		"iter-service",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	h.registerTools(mcpServer)
	h.mcpServer = mcpServer
	h.sse = server.NewSSEServer(mcpServer, server.WithBasePath("/mcp"))

	return h
}

// ServeHTTP handles HTTP requests for MCP, delegating to mcp-go's SSE
// transport for both the event stream and the JSON-RPC message endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.sse.ServeHTTP(w, r)
}

// registerTools registers all MCP tools with the server.
func (h *Handler) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List all indexed projects in iter-service"),
		),
		h.handleListProjects,
	)

	mcpServer.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Search for symbols (functions, types, methods) across indexed projects"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query (symbol name or pattern)"),
			),
			mcp.WithString("project_id",
				mcp.Description("Optional project ID to search within; searches all projects if omitted"),
			),
		),
		h.handleSearch,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_dependencies",
			mcp.WithDescription("Get dependencies of a symbol (what it calls/uses)"),
			mcp.WithString("project_id",
				mcp.Required(),
				mcp.Description("Project ID"),
			),
			mcp.WithString("symbol",
				mcp.Required(),
				mcp.Description("Symbol name to get dependencies for"),
			),
		),
		h.handleGetDependencies,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_dependents",
			mcp.WithDescription("Get dependents of a symbol (what calls/uses it)"),
			mcp.WithString("project_id",
				mcp.Required(),
				mcp.Description("Project ID"),
			),
			mcp.WithString("symbol",
				mcp.Required(),
				mcp.Description("Symbol name to get dependents for"),
			),
		),
		h.handleGetDependents,
	)
}

func (h *Handler) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects := h.registry.List()
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects indexed."), nil
	}

	var sb strings.Builder
	sb.WriteString("Indexed projects:\n\n")
	for _, p := range projects {
		sb.WriteString(fmt.Sprintf("- **%s** (ID: %s)\n  Path: %s\n  Registered: %s\n\n",
			p.Name, p.ID, p.Path, p.RegisteredAt.Format(time.RFC3339)))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *Handler) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	projectID := request.GetString("project_id", "")

	if projectID != "" {
		p, err := h.registry.Get(projectID)
		if err != nil || p == nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectID)), nil
		}
		return h.searchProject(ctx, p.ID, query), nil
	}

	projects := h.registry.List()
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects indexed."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search results for '%s':\n\n", query))
	for _, p := range projects {
		result := h.searchProject(ctx, p.ID, query)
		if result.IsError {
			continue
		}
		text := resultText(result)
		if text == "" || text == "No results found." {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n%s\n", p.Name, text))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *Handler) searchProject(ctx context.Context, projectID, query string) *mcp.CallToolResult {
	indexer := h.manager.GetIndexer(projectID)
	if indexer == nil {
		return mcp.NewToolResultError("index not available")
	}

	searcher := index.NewSearcher(indexer)
	opts := index.ProjectSearchOptions{
		Query: query,
		Limit: 20,
	}

	results, err := searcher.Search(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err))
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found.")
	}

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- **%s** (%s)\n  File: %s:%d\n",
			r.Chunk.SymbolName, r.Chunk.SymbolKind, r.Chunk.FilePath, r.Chunk.StartLine))
		if r.Chunk.Signature != "" {
			sb.WriteString(fmt.Sprintf("  Signature: `%s`\n", r.Chunk.Signature))
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String())
}

func (h *Handler) handleGetDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	symbol := request.GetString("symbol", "")
	if projectID == "" || symbol == "" {
		return mcp.NewToolResultError("project_id and symbol are required"), nil
	}

	indexer, err := h.resolveIndexer(projectID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	searcher := index.NewSearcher(indexer)
	deps, err := searcher.GetDependencies(symbol)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get dependencies failed: %v", err)), nil
	}

	return mcp.NewToolResultText(deps.FormatDependencies("Dependencies")), nil
}

func (h *Handler) handleGetDependents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	symbol := request.GetString("symbol", "")
	if projectID == "" || symbol == "" {
		return mcp.NewToolResultError("project_id and symbol are required"), nil
	}

	indexer, err := h.resolveIndexer(projectID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	searcher := index.NewSearcher(indexer)
	dependents, err := searcher.GetDependents(symbol)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get dependents failed: %v", err)), nil
	}

	return mcp.NewToolResultText(dependents.FormatDependencies("Dependents")), nil
}

// resolveIndexer looks up the indexer for a registered project ID.
func (h *Handler) resolveIndexer(projectID string) (*index.Indexer, error) {
	p, err := h.registry.Get(projectID)
	if err != nil || p == nil {
		return nil, fmt.Errorf("project not found: %s", projectID)
	}
	indexer := h.manager.GetIndexer(p.ID)
	if indexer == nil {
		return nil, fmt.Errorf("index not available")
	}
	return indexer, nil
}

// resultText extracts the first text block from a tool result, if any.
func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
