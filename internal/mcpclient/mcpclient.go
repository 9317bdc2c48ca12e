// Package mcpclient connects to the MCP servers listed in the configuration.
package mcpclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/logger"
)

const (
	clientName    = "ethiochat"
	clientVersion = "1.0.0"
)

// Dial connects to the MCP server described by cfg and performs the
// initialize handshake.
func Dial(ctx context.Context, cfg config.MCPServerConfig) (*client.Client, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create mcp client %s: %w", cfg.Name, err)
	}

	if cfg.Type != config.ClientTypeStdio {
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("start mcp client %s: %w", cfg.Name, err)
		}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize mcp client %s: %w", cfg.Name, err)
	}
	logger.L.Info("mcp server initialized", "name", cfg.Name, "type", cfg.Type)
	return c, nil
}

func newClient(cfg config.MCPServerConfig) (*client.Client, error) {
	switch cfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		return client.NewSSEMCPClient(cfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return client.NewStreamableHttpClient(cfg.URL, opts...)
	case config.ClientTypeStdio:
		return client.NewStdioMCPClient(cfg.Command, envPairs(cfg.Env), cfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported mcp server type %q", cfg.Type)
	}
}

// envPairs turns a config env map into KEY=value pairs. Viper lower-cases map
// keys, so names are upper-cased back.
func envPairs(m map[string]string) []string {
	env := make([]string, 0, len(m))
	for k, v := range m {
		env = append(env, fmt.Sprintf("%s=%s", strings.ToUpper(k), v))
	}
	return env
}
