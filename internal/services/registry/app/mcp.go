package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/api/mcptools"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// MCPConfig selects how the MCP tools are served and who they act as.
type MCPConfig struct {
	Transport string
	HTTPAddr  string
	// CallerToken is a caller token naming the account write tools act as.
	// Without it the server is read-only.
	CallerToken string
}

// RunMCP opens the runtime and serves the registry MCP tools until ctx is
// canceled.
func RunMCP(ctx context.Context, cfg RuntimeConfig, mcpCfg MCPConfig) error {
	transport := strings.ToLower(strings.TrimSpace(mcpCfg.Transport))
	if transport != TransportStdio && transport != TransportHTTP {
		return fmt.Errorf("unsupported transport %q", mcpCfg.Transport)
	}
	runtime, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			log.Printf("close registry store: %v", err)
		}
	}()

	caller, err := mcpCaller(runtime, mcpCfg.CallerToken)
	if err != nil {
		return err
	}
	server, err := mcptools.NewServer(mcptools.Deps{
		Registry: runtime.Registry,
		Admin:    runtime.Guard,
		Caller:   caller,
	})
	if err != nil {
		return err
	}
	if transport == TransportHTTP {
		return mcptools.ServeHTTP(ctx, server, mcpCfg.HTTPAddr)
	}
	return mcptools.ServeStdio(ctx, server)
}

func mcpCaller(runtime *Runtime, token string) (common.Address, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		log.Printf("no caller token configured; write tools are disabled")
		return common.Address{}, nil
	}
	if runtime.Verifier == nil {
		return common.Address{}, errors.New("a caller token requires SOULBOUND_CALLER_PUBLIC_KEY")
	}
	caller, err := runtime.Verifier.Caller(token)
	if err != nil {
		return common.Address{}, fmt.Errorf("verify mcp caller token: %w", err)
	}
	log.Printf("mcp write tools act as %s", caller.Hex())
	return caller, nil
}
