package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/ethiochat/internal/api"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/history"
	"github.com/comigor/ethiochat/internal/ident"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	err      error
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured for request: " + r.Messages[len(r.Messages)-1].Content)
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func reply(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: text}}}}
}

func TestBackendSendMintsSessionAndKeepsTranscript(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{reply("Selam!"), reply("Lalibela is famous for its rock-hewn churches.")}}
	b := NewBackend(mock, config.LLMConfig{Model: "gpt", SystemPrompt: "be brief"}, history.New(""))
	ctx := context.Background()

	first, err := b.Send(ctx, api.SendRequest{Message: "hi", Token: "tok"})
	require.NoError(t, err)
	require.True(t, ident.Valid(first.SessionID))
	require.Equal(t, "Selam!", first.Response.Content)
	require.NotEmpty(t, first.Response.Timestamp)

	second, err := b.Send(ctx, api.SendRequest{Message: "tell me about Lalibela", SessionID: first.SessionID, Token: "tok"})
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)

	last := mock.requests[1]
	require.Equal(t, "gpt", last.Model)
	require.Len(t, last.Messages, 4)
	require.Equal(t, openai.ChatMessageRoleSystem, last.Messages[0].Role)
	require.Equal(t, "be brief", last.Messages[0].Content)
	require.Equal(t, "hi", last.Messages[1].Content)
	require.Equal(t, "Selam!", last.Messages[2].Content)

	h, err := b.History(ctx, first.SessionID, "tok")
	require.NoError(t, err)
	require.Len(t, h.Messages, 4)
	require.Equal(t, "user", h.Messages[0].Sender)
	require.Equal(t, "bot", h.Messages[1].Sender)
}

func TestBackendErrors(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(&mockLLM{}, config.LLMConfig{}, history.New(""))

	_, err := b.Send(ctx, api.SendRequest{Message: "hi"})
	require.True(t, api.IsAuthExpired(err))

	_, err = b.Send(ctx, api.SendRequest{Message: "hi", SessionID: "not-a-uuid", Token: "tok"})
	require.True(t, api.IsSessionInvalid(err))

	_, err = b.History(ctx, ident.New(), "tok")
	require.True(t, api.IsSessionGone(err))

	b = NewBackend(&mockLLM{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "Rate limit exceeded"}}, config.LLMConfig{}, history.New(""))
	_, err = b.Send(ctx, api.SendRequest{Message: "hi", Token: "tok"})
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusTooManyRequests, se.Status)

	b = NewBackend(&mockLLM{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}}, config.LLMConfig{}, history.New(""))
	_, err = b.Send(ctx, api.SendRequest{Message: "hi", Token: "tok"})
	require.False(t, api.IsAuthExpired(err))

	b = NewBackend(&mockLLM{err: errors.New("dial tcp: connection refused")}, config.LLMConfig{}, history.New(""))
	_, err = b.Send(ctx, api.SendRequest{Message: "hi", Token: "tok"})
	require.True(t, api.IsNetwork(err))
}
