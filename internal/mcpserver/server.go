// Package mcpserver exposes the engine as Model Context Protocol tools over
// stdio, SSE or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"trademcp/internal/config"
	"trademcp/internal/engine"
	"trademcp/internal/result"
	"trademcp/internal/schema"
)

// ServerName is the implementation name announced during initialization.
const ServerName = "trademcp"

// Gateway registers every declared tool on an MCP server and routes calls
// into the engine.
type Gateway struct {
	engine *engine.Engine
	mcp    *server.MCPServer
	tools  []string
	log    *slog.Logger
}

// New creates a Gateway serving every tool in the schema registry.
func New(eng *engine.Engine, version string) *Gateway {
	g := &Gateway{
		engine: eng,
		mcp: server.NewMCPServer(ServerName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		log: slog.Default().With("component", "mcpserver"),
	}
	for _, t := range schema.Tools() {
		g.mcp.AddTool(ToolDefinition(t), g.handler(t.Name))
		g.tools = append(g.tools, t.Name)
	}
	return g
}

// MCPServer exposes the underlying protocol server.
func (g *Gateway) MCPServer() *server.MCPServer {
	return g.mcp
}

// ToolNames lists the registered tools in registration order.
func (g *Gateway) ToolNames() []string {
	return g.tools
}

func (g *Gateway) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return g.Call(ctx, name, req.GetArguments())
	}
}

// Call invokes one tool and wraps the envelope as a tool result. Tool
// failures are reported in-band with IsError set; only an unencodable
// envelope is returned as a protocol error.
func (g *Gateway) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	env := g.engine.Invoke(ctx, name, args)
	return toResult(env)
}

func toResult(env result.Envelope) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", env.Status, err)
	}
	res := mcp.NewToolResultStructured(env, string(text))
	res.IsError = !env.Success
	return res, nil
}

// ---------------------------------------------------------------------------
// Transports
// ---------------------------------------------------------------------------

// Serve runs the configured transport until ctx is cancelled.
func (g *Gateway) Serve(ctx context.Context, cfg config.Server) error {
	switch cfg.Transport {
	case config.TransportStdio:
		return g.serveStdio(ctx)
	case config.TransportSSE, config.TransportStreamableHTTP:
		return g.serveHTTP(ctx, cfg)
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func (g *Gateway) serveStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(g.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(g.log.Handler(), slog.LevelError))
	g.log.Info("serving mcp", "transport", config.TransportStdio, "tools", len(g.tools))

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// HTTPHandler returns the handler of a network transport: the SSE stream
// and message endpoints, or the single streamable HTTP endpoint at /mcp.
func (g *Gateway) HTTPHandler(transport string) (http.Handler, error) {
	switch transport {
	case config.TransportSSE:
		return server.NewSSEServer(g.mcp), nil
	case config.TransportStreamableHTTP:
		mux := http.NewServeMux()
		mux.Handle("/mcp", server.NewStreamableHTTPServer(g.mcp))
		return mux, nil
	}
	return nil, fmt.Errorf("transport %q is not served over HTTP", transport)
}

func (g *Gateway) serveHTTP(ctx context.Context, cfg config.Server) error {
	handler, err := g.HTTPHandler(cfg.Transport)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		g.log.Info("serving mcp", "transport", cfg.Transport, "addr", httpServer.Addr, "tools", len(g.tools))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("%s transport: %w", cfg.Transport, err)
	}

	g.log.Info("shutting down mcp transport", "transport", cfg.Transport)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Open SSE streams never go idle; stop waiting for them at the deadline.
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
