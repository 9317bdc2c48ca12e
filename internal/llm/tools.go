package llm

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ethiochat/internal/logger"
)

// ToolSource is the subset of an MCP client the toolbox needs.
type ToolSource interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// Toolbox exposes the tools of MCP servers to the model. A tool name is
// owned by the first server that registers it.
type Toolbox struct {
	sources []ToolSource
	tools   []openai.Tool
	owners  map[string]ToolSource
	prompts []string
}

func NewToolbox() *Toolbox {
	return &Toolbox{owners: make(map[string]ToolSource)}
}

// Register lists the tools of src and adopts the first argument-less prompt
// it offers as extra system instructions.
func (t *Toolbox) Register(ctx context.Context, name string, src ToolSource) error {
	listed, err := src.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}
	t.sources = append(t.sources, src)

	for _, tool := range listed.Tools {
		if _, exists := t.owners[tool.Name]; exists {
			logger.L.Warn("tool already registered by another server; skipping", "tool", tool.Name, "server", name)
			continue
		}
		t.owners[tool.Name] = src
		t.tools = append(t.tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaOf(tool),
			},
		})
		logger.L.Info("registered tool for llm", "tool", tool.Name, "server", name)
	}

	if prompt := firstPrompt(ctx, name, src); prompt != "" {
		t.prompts = append(t.prompts, prompt)
	}
	return nil
}

func schemaOf(tool mcp.Tool) json.RawMessage {
	if len(tool.RawInputSchema) > 0 && string(tool.RawInputSchema) != "null" {
		return tool.RawInputSchema
	}
	if tool.InputSchema.Type == "" {
		return emptySchema
	}
	b, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return emptySchema
	}
	return b
}

func firstPrompt(ctx context.Context, name string, src ToolSource) string {
	listed, err := src.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil || listed == nil {
		logger.L.Debug("server offers no prompts", "server", name, "error", err)
		return ""
	}
	i := slices.IndexFunc(listed.Prompts, func(p mcp.Prompt) bool { return len(p.Arguments) == 0 })
	if i == -1 {
		return ""
	}
	got, err := src.GetPrompt(ctx, mcp.GetPromptRequest{Params: mcp.GetPromptParams{Name: listed.Prompts[i].Name}})
	if err != nil || got == nil {
		logger.L.Warn("failed to get prompt", "server", name, "error", err)
		return ""
	}
	for _, m := range got.Messages {
		if m.Role != mcp.RoleAssistant {
			continue
		}
		if tc, ok := m.Content.(mcp.TextContent); ok {
			logger.L.Info("adopted system prompt from mcp server", "server", name)
			return tc.Text
		}
	}
	return ""
}

// Tools returns the function definitions offered to the model.
func (t *Toolbox) Tools() []openai.Tool {
	if t == nil {
		return nil
	}
	return t.tools
}

// Prompts returns the system prompts contributed by servers.
func (t *Toolbox) Prompts() []string {
	if t == nil {
		return nil
	}
	return t.prompts
}

// Call runs one tool call and returns the tool message answering it. Tool
// failures are reported to the model as text, never as errors.
func (t *Toolbox) Call(ctx context.Context, call openai.ToolCall) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    t.run(ctx, call),
		ToolCallID: call.ID,
		Name:       call.Function.Name,
	}
}

func (t *Toolbox) run(ctx context.Context, call openai.ToolCall) string {
	name := call.Function.Name
	src, ok := t.owners[name]
	if !ok {
		return "Error: tool " + name + " is not available"
	}
	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			logger.L.Warn("failed to parse tool arguments", "tool", name, "error", err)
			return "Error: could not parse arguments for tool " + name
		}
	}

	logger.L.Debug("calling tool", "tool", name, "arguments", args)
	res, err := src.CallTool(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		logger.L.Warn("tool call failed", "tool", name, "error", err)
		return "Error: tool " + name + " failed: " + err.Error()
	}
	if res == nil {
		return "Error: tool " + name + " returned no result"
	}
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	if res.IsError {
		return "Error: tool " + name + " failed without details"
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "Tool executed successfully, but its result could not be formatted."
	}
	return string(b)
}

// Close closes every registered server.
func (t *Toolbox) Close() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, s := range t.sources {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
