package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/ethiochat/internal/api"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/history"
)

// mockMCPClient mirrors ToolSource.
type mockMCPClient struct {
	ListToolsFunc   func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	ListPromptsFunc func(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPromptFunc   func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	CallToolFunc    func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	closed          bool
}

func (m *mockMCPClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.ListToolsFunc != nil {
		return m.ListToolsFunc(ctx, req)
	}
	return &mcp.ListToolsResult{}, nil
}

func (m *mockMCPClient) ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
	if m.ListPromptsFunc != nil {
		return m.ListPromptsFunc(ctx, req)
	}
	return &mcp.ListPromptsResult{}, nil
}

func (m *mockMCPClient) GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if m.GetPromptFunc != nil {
		return m.GetPromptFunc(ctx, req)
	}
	return nil, errors.New("no prompt")
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.CallToolFunc != nil {
		return m.CallToolFunc(ctx, req)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "mock default success for " + req.Params.Name}},
	}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed = true
	return nil
}

func weatherTool() *mockMCPClient {
	return &mockMCPClient{
		ListToolsFunc: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: []mcp.Tool{
				{Name: "get_weather", Description: "Gets weather", RawInputSchema: json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}}}`)},
			}}, nil
		},
	}
}

func toolCall(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       id,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

func TestToolboxRegister(t *testing.T) {
	tb := NewToolbox()
	src := weatherTool()
	src.ListPromptsFunc = func(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
		return &mcp.ListPromptsResult{Prompts: []mcp.Prompt{
			{Name: "needs-args", Arguments: []mcp.PromptArgument{{Name: "city"}}},
			{Name: "travel"},
		}}, nil
	}
	src.GetPromptFunc = func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		require.Equal(t, "travel", req.Params.Name)
		return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "ignored"}},
			{Role: mcp.RoleAssistant, Content: mcp.TextContent{Type: "text", Text: "Temperatures are in Celsius."}},
		}}, nil
	}

	require.NoError(t, tb.Register(context.Background(), "weather", src))
	require.NoError(t, tb.Register(context.Background(), "duplicate", weatherTool()))

	require.Len(t, tb.Tools(), 1)
	require.Equal(t, "get_weather", tb.Tools()[0].Function.Name)
	require.Equal(t, []string{"Temperatures are in Celsius."}, tb.Prompts())

	require.NoError(t, tb.Close())
	require.True(t, src.closed)
}

func TestToolboxRegisterFailure(t *testing.T) {
	tb := NewToolbox()
	err := tb.Register(context.Background(), "broken", &mockMCPClient{
		ListToolsFunc: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return nil, errors.New("connection refused")
		},
	})
	require.Error(t, err)
	require.Empty(t, tb.Tools())
}

func TestToolboxEmptySchema(t *testing.T) {
	tb := NewToolbox()
	require.NoError(t, tb.Register(context.Background(), "bare", &mockMCPClient{
		ListToolsFunc: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: []mcp.Tool{{Name: "ping"}}}, nil
		},
	}))
	require.Len(t, tb.Tools(), 1)
	require.NotNil(t, tb.Tools()[0].Function.Parameters)
}

func TestBackendRunsRequestedTool(t *testing.T) {
	src := weatherTool()
	src.CallToolFunc = func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		require.Equal(t, "get_weather", req.Params.Name)
		require.Equal(t, map[string]any{"location": "Gondar"}, req.Params.Arguments)
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "24°C, sunny"}}}, nil
	}
	tb := NewToolbox()
	require.NoError(t, tb.Register(context.Background(), "weather", src))

	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("call_1", "get_weather", `{"location": "Gondar"}`),
		reply("It is 24°C and sunny in Gondar."),
	}}
	b := NewBackend(mock, config.LLMConfig{Model: "gpt"}, history.New(""))
	b.UseTools(tb)

	resp, err := b.Send(context.Background(), api.SendRequest{Message: "Is it warm in Gondar?", Token: "tok"})
	require.NoError(t, err)
	require.Equal(t, "It is 24°C and sunny in Gondar.", resp.Response.Content)

	require.Len(t, mock.requests, 2)
	require.Len(t, mock.requests[0].Tools, 1)
	followUp := mock.requests[1].Messages
	toolMsg := followUp[len(followUp)-1]
	require.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
	require.Equal(t, "call_1", toolMsg.ToolCallID)
	require.Equal(t, "24°C, sunny", toolMsg.Content)

	// Only the user turn and the final answer are kept.
	past, err := b.History(context.Background(), resp.SessionID, "tok")
	require.NoError(t, err)
	require.Len(t, past.Messages, 2)
}

func TestBackendReportsToolFailuresToModel(t *testing.T) {
	src := weatherTool()
	src.CallToolFunc = func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("upstream down")
	}
	tb := NewToolbox()
	require.NoError(t, tb.Register(context.Background(), "weather", src))

	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("call_1", "get_weather", `{"location": "Axum"}`),
		toolCall("call_2", "unknown_tool", `{}`),
		toolCall("call_3", "get_weather", `not json`),
		reply("Sorry, I could not check the weather."),
	}}
	b := NewBackend(mock, config.LLMConfig{Model: "gpt"}, history.New(""))
	b.UseTools(tb)

	resp, err := b.Send(context.Background(), api.SendRequest{Message: "weather in Axum?", Token: "tok"})
	require.NoError(t, err)
	require.Equal(t, "Sorry, I could not check the weather.", resp.Response.Content)

	last := mock.requests[3].Messages
	require.Contains(t, last[len(last)-5].Content, "upstream down")
	require.Contains(t, last[len(last)-3].Content, "not available")
	require.Contains(t, last[len(last)-1].Content, "could not parse")
}

func TestBackendStopsRunawayToolLoop(t *testing.T) {
	tb := NewToolbox()
	require.NoError(t, tb.Register(context.Background(), "weather", weatherTool()))

	var calls []openai.ChatCompletionResponse
	for i := 0; i <= maxToolRounds; i++ {
		calls = append(calls, toolCall("call", "get_weather", `{"location": "Harar"}`))
	}
	b := NewBackend(&mockLLM{calls: calls}, config.LLMConfig{Model: "gpt"}, history.New(""))
	b.UseTools(tb)

	_, err := b.Send(context.Background(), api.SendRequest{Message: "weather?", Token: "tok"})
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Status)
}
