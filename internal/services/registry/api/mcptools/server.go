package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/louisbranch/soulbound/internal/platform/timeouts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "soulbound-registry"
	serverVersion = "0.1.0"
)

type registrationTarget interface {
	AddTool(*mcp.Tool, any) error
}

type serverAdapter struct {
	server *mcp.Server
}

func (a serverAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addTool(a.server, tool, handler)
}

type toolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newToolRegistrar[I any, O any]() toolRegistrar {
	return toolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var toolRegistrars = []toolRegistrar{
	newToolRegistrar[CollectionInput, CollectionResult](),
	newToolRegistrar[TokenGetInput, TokenResult](),
	newToolRegistrar[HolderGetInput, HolderResult](),
	newToolRegistrar[TransfersListInput, TransfersListResult](),
	newToolRegistrar[TokenMintInput, TokenResult](),
	newToolRegistrar[TokenUnequipInput, TokenUnequipResult](),
	newToolRegistrar[TokenTransferInput, TokenTransferResult](),
	newToolRegistrar[AdministratorInput, AdministratorResult](),
}

func addTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range toolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration does not support handler type %T for tool %q", handler, toolName)
}

func registerTools(target registrationTarget, deps Deps) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: CollectionTool(), handler: CollectionHandler(deps)},
		{tool: TokenGetTool(), handler: TokenGetHandler(deps)},
		{tool: HolderGetTool(), handler: HolderGetHandler(deps)},
		{tool: TransfersListTool(), handler: TransfersListHandler(deps)},
		{tool: TokenMintTool(), handler: TokenMintHandler(deps)},
		{tool: TokenUnequipTool(), handler: TokenUnequipHandler(deps)},
		{tool: TokenTransferTool(), handler: TokenTransferHandler(deps)},
		{tool: AdministratorGetTool(), handler: AdministratorGetHandler(deps)},
	}
	for _, registration := range registrations {
		if err := target.AddTool(registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

// NewServer builds an MCP server with every registry tool registered.
func NewServer(deps Deps) (*mcp.Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if deps.Admin == nil {
		return nil, errors.New("administrator source is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	if err := registerTools(serverAdapter{server: server}, deps); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return server, nil
}

// Serve runs server over transport until ctx is canceled or the peer
// disconnects.
func Serve(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if server == nil {
		return errors.New("mcp server is nil")
	}
	if transport == nil {
		return errors.New("mcp transport is nil")
	}
	log.Printf("serving %s tools", serverName)
	err := server.Run(ctx, transport)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("serve mcp: %w", err)
}

// ServeStdio runs server over standard input and output.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return Serve(ctx, server, &mcp.StdioTransport{})
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// ServeHTTP runs server over streamable HTTP on addr until ctx is canceled.
func ServeHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	if server == nil {
		return errors.New("mcp server is nil")
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(server),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("serving %s tools over http at %s", serverName, addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown mcp http server: %v", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve mcp http: %w", err)
	}
}
