package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/message"
)

// ToolCaller is the subset of an MCP client the provider needs.
type ToolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCP asks a weather tool exposed by an MCP server and falls back to another
// provider when the call fails or the result cannot be read.
type MCP struct {
	caller   ToolCaller
	tool     string
	fallback Provider
}

func NewMCP(caller ToolCaller, tool string, fallback Provider) *MCP {
	if tool == "" {
		tool = "get_weather"
	}
	return &MCP{caller: caller, tool: tool, fallback: fallback}
}

func (p *MCP) Lookup(ctx context.Context, location string) (message.WeatherData, error) {
	if strings.TrimSpace(location) == "" {
		return message.WeatherData{}, ErrEmptyLocation
	}
	d, err := p.call(ctx, location)
	if err == nil {
		return d, nil
	}
	logger.L.Warn("mcp weather lookup failed; using fallback", "location", location, "error", err)
	if p.fallback == nil {
		return message.WeatherData{}, err
	}
	return p.fallback.Lookup(ctx, location)
}

func (p *MCP) call(ctx context.Context, location string) (message.WeatherData, error) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      p.tool,
			Arguments: map[string]any{"location": location},
		},
	}
	res, err := p.caller.CallTool(ctx, req)
	if err != nil {
		return message.WeatherData{}, err
	}
	if res == nil {
		return message.WeatherData{}, fmt.Errorf("tool %s returned no result", p.tool)
	}
	var text string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}
	if res.IsError {
		return message.WeatherData{}, fmt.Errorf("tool %s failed: %s", p.tool, text)
	}
	var d message.WeatherData
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return message.WeatherData{}, fmt.Errorf("decode tool %s result: %w", p.tool, err)
	}
	if d.Location == "" {
		d.Location = location
	}
	if err := d.Check(); err != nil {
		return message.WeatherData{}, err
	}
	return d, nil
}

// Close releases the underlying MCP client.
func (p *MCP) Close() error {
	return p.caller.Close()
}
