// Package mcp exposes a bundler to AI agents over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/bale"
	"github.com/aretw0/bale/internal/logging"
	presentation "github.com/aretw0/bale/internal/presentation/graph"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Bundle is the part of a bundler the MCP server drives.
type Bundle interface {
	Build(ctx context.Context) (*domain.BuildResult, error)
	Graph() *domain.Graph
	Result() *domain.BuildResult
	Output(name string) ([]byte, bool)
	Root() string
}

// ChunkSummary describes one linked chunk.
type ChunkSummary struct {
	Name    string   `json:"name"`
	File    string   `json:"file"`
	Hash    string   `json:"hash"`
	Modules []string `json:"modules"`
}

// BuildResponse is the structured result of the build tool.
type BuildResponse struct {
	BuildID   string            `json:"build_id" jsonschema_description:"Identifier of the build"`
	Succeeded bool              `json:"succeeded" jsonschema_description:"True when the build produced output"`
	Stage     domain.Stage      `json:"stage" jsonschema_description:"Stage the build ended in"`
	Errors    []string          `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Chunks    []ChunkSummary    `json:"chunks"`
	Rebuilt   []string          `json:"rebuilt,omitempty" jsonschema_description:"Modules re-transformed by this build"`
	Stats     domain.BuildStats `json:"stats"`
}

// ModuleView is one module of the graph as seen by an agent.
type ModuleView struct {
	ID           string              `json:"id"`
	Kind         domain.ModuleKind   `json:"kind"`
	Dependencies []domain.Dependency `json:"dependencies,omitempty"`
	Dependents   []string            `json:"dependents,omitempty"`
}

// GraphResponse is the structured result of the inspect_graph tool.
type GraphResponse struct {
	Entries []string     `json:"entries"`
	Modules []ModuleView `json:"modules"`
	Cycles  []string     `json:"cycles,omitempty"`
}

// Server wraps a Bundle and exposes it as an MCP server.
type Server struct {
	bundle    Bundle
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server for b.
func NewServer(b Bundle, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bundle:    b,
		logger:    logger,
		mcpServer: server.NewMCPServer("bale-mcp", strings.TrimSpace(bale.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	buildTool := mcp.NewTool("build",
		mcp.WithDescription("Run an incremental build of the project and report chunks, errors and stats."),
		mcp.WithOutputSchema[BuildResponse](),
	)
	s.mcpServer.AddTool(buildTool, mcp.NewStructuredToolHandler(s.handleBuild))

	inspectTool := mcp.NewTool("inspect_graph",
		mcp.WithDescription("Inspect the module graph of the last build. Pass a module path to see one module and its dependents."),
		mcp.WithString("module", mcp.Description("Module path relative to the project root (optional)")),
		mcp.WithOutputSchema[GraphResponse](),
	)
	s.mcpServer.AddTool(inspectTool, mcp.NewStructuredToolHandler(s.handleInspect))

	s.mcpServer.AddTool(mcp.NewTool("graph_mermaid",
		mcp.WithDescription("Render the module graph of the last build as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		g := s.bundle.Graph()
		if g == nil {
			return mcp.NewToolResultError("no graph yet: run the build tool first"), nil
		}
		var overlay *presentation.Overlay
		if r := s.bundle.Result(); r != nil {
			overlay = &presentation.Overlay{Rebuilt: r.Rebuilt, Cycles: g.Cycles}
		}
		return mcp.NewToolResultText(presentation.GenerateMermaid(g, s.bundle.Root(), overlay)), nil
	})
}

func (s *Server) handleBuild(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (BuildResponse, error) {
	res, err := s.bundle.Build(ctx)
	if res == nil {
		return BuildResponse{}, fmt.Errorf("build failed: %w", err)
	}
	if err != nil {
		s.logger.Debug("mcp build finished with errors", "err", err)
	}
	return summarize(res, s.bundle.Root()), nil
}

func summarize(r *domain.BuildResult, root string) BuildResponse {
	out := BuildResponse{
		BuildID:   r.BuildID,
		Succeeded: r.Succeeded(),
		Stage:     r.Stage,
		Errors:    r.ErrorStrings(),
		Warnings:  r.WarningStrings(),
		Chunks:    []ChunkSummary{},
		Stats:     r.Stats,
	}
	for _, c := range r.Chunks {
		cs := ChunkSummary{Name: c.Name, File: c.OutputFilename, Hash: c.Hash}
		for _, id := range c.Modules {
			cs.Modules = append(cs.Modules, id.Rel(root))
		}
		out.Chunks = append(out.Chunks, cs)
	}
	for _, id := range r.Rebuilt {
		out.Rebuilt = append(out.Rebuilt, id.Rel(root))
	}
	return out
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (GraphResponse, error) {
	g := s.bundle.Graph()
	if g == nil {
		return GraphResponse{}, fmt.Errorf("no graph yet: run the build tool first")
	}
	root := s.bundle.Root()

	if name, _ := args["module"].(string); name != "" {
		id := domain.NewModuleID(strings.TrimSuffix(root, "/")+"/"+strings.TrimPrefix(name, "./"), "")
		if !g.Has(id) {
			return GraphResponse{}, fmt.Errorf("module %s is not in the graph", name)
		}
		resp := graphView(g, root, []domain.ModuleID{id})
		return resp, nil
	}
	return graphView(g, root, g.IDs()), nil
}

func graphView(g *domain.Graph, root string, ids []domain.ModuleID) GraphResponse {
	out := GraphResponse{Entries: []string{}, Modules: []ModuleView{}}
	for _, id := range g.Entries {
		out.Entries = append(out.Entries, id.Rel(root))
	}
	for _, id := range ids {
		mod, ok := g.Get(id)
		if !ok {
			continue
		}
		view := ModuleView{ID: id.Rel(root), Kind: mod.Kind}
		for _, d := range mod.Dependencies {
			if d.Resolved != "" {
				d.Resolved = domain.ModuleID(d.Resolved.Rel(root))
			}
			view.Dependencies = append(view.Dependencies, d)
		}
		for _, p := range g.Dependents(id) {
			view.Dependents = append(view.Dependents, p.Rel(root))
		}
		out.Modules = append(out.Modules, view)
	}
	for _, c := range g.Cycles {
		parts := make([]string, len(c.Path))
		for i, id := range c.Path {
			parts[i] = id.Rel(root)
		}
		out.Cycles = append(out.Cycles, strings.Join(parts, " -> "))
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("bale://manifest", "Manifest of the last successful build",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, ok := s.bundle.Output("manifest.json")
		if !ok {
			return nil, fmt.Errorf("no manifest yet")
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "bale://manifest",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("bale://graph", "Module graph of the last build",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		g := s.bundle.Graph()
		if g == nil {
			return nil, fmt.Errorf("no graph yet")
		}
		data, err := json.Marshal(graphView(g, s.bundle.Root(), g.IDs()))
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "bale://graph",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
