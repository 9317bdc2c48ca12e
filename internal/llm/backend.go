package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ethiochat/internal/api"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/history"
	"github.com/comigor/ethiochat/internal/ident"
	"github.com/comigor/ethiochat/internal/logger"
)

const defaultSystemPrompt = "You are EthioTravel's assistant. Help travellers plan trips to Ethiopia: destinations, visas, currency, safety and local culture. Answer concisely; use **bold** for key facts and '- ' for lists."

const (
	// maxTurns bounds how much transcript is replayed to the model.
	maxTurns = 20
	// maxToolRounds bounds model -> tool -> model round trips per message.
	maxToolRounds = 5
)

// Backend answers conversation requests with a chat-completion model and keeps
// the transcript in a history store. It satisfies api.Conversation, so the
// controller can run without the hosted travel backend.
type Backend struct {
	client  Client
	cfg     config.LLMConfig
	history *history.Store
	tools   *Toolbox
	now     func() time.Time
}

func NewBackend(client Client, cfg config.LLMConfig, store *history.Store) *Backend {
	return &Backend{client: client, cfg: cfg, history: store, now: time.Now}
}

var _ api.Conversation = (*Backend)(nil)

// UseTools lets the model call the tools in tb while answering.
func (b *Backend) UseTools(tb *Toolbox) {
	b.tools = tb
}

func (b *Backend) Send(ctx context.Context, req api.SendRequest) (*api.SendResponse, error) {
	const op = "send message"
	if req.Token == "" {
		return nil, &api.StatusError{Op: op, Status: http.StatusUnauthorized, Message: "Authentication credentials were not provided."}
	}
	sessionID := req.SessionID
	switch {
	case sessionID == "":
		sessionID = ident.New()
	case !ident.Valid(sessionID):
		return nil, &api.StatusError{Op: op, Status: http.StatusBadRequest, Message: "Invalid session_id"}
	}

	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: b.systemPrompt()}}
	past := b.history.List(ctx, sessionID)
	if len(past) > maxTurns {
		past = past[len(past)-maxTurns:]
	}
	for _, m := range past {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	content, err := b.complete(ctx, op, msgs)
	if err != nil {
		return nil, err
	}

	b.history.Save(ctx, history.Message{SessionID: sessionID, Role: openai.ChatMessageRoleUser, Content: req.Message})
	saved := b.history.Save(ctx, history.Message{SessionID: sessionID, Role: openai.ChatMessageRoleAssistant, Content: content, CreatedAt: b.now().UTC()})
	logger.L.Debug("llm reply stored", "session_id", sessionID, "turns", len(past)+2)

	return &api.SendResponse{
		SessionID: sessionID,
		Response: api.Reply{
			Content:   content,
			Timestamp: saved.CreatedAt.Format(time.RFC3339),
		},
	}, nil
}

func (b *Backend) systemPrompt() string {
	prompt := b.cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	extra := b.tools.Prompts()
	if len(extra) == 0 {
		return prompt
	}
	return prompt + "\n\n" + strings.Join(extra, "\n\n")
}

// complete asks the model for an answer, running the tools it requests in
// between.
func (b *Backend) complete(ctx context.Context, op string, msgs []openai.ChatCompletionMessage) (string, error) {
	for round := 0; round <= maxToolRounds; round++ {
		resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    b.cfg.Model,
			Messages: msgs,
			Tools:    b.tools.Tools(),
		})
		if err != nil {
			return "", classify(op, err)
		}
		if len(resp.Choices) == 0 {
			return "", &api.StatusError{Op: op, Status: http.StatusBadGateway, Message: "model returned no choices"}
		}
		answer := resp.Choices[0].Message
		if len(answer.ToolCalls) == 0 || b.tools == nil {
			return answer.Content, nil
		}
		logger.L.Debug("model requested tools", "count", len(answer.ToolCalls), "round", round)
		msgs = append(msgs, answer)
		for _, call := range answer.ToolCalls {
			msgs = append(msgs, b.tools.Call(ctx, call))
		}
	}
	logger.L.Warn("model exceeded tool rounds", "max", maxToolRounds)
	return "", &api.StatusError{Op: op, Status: http.StatusBadGateway, Message: "model exceeded maximum tool rounds"}
}

func (b *Backend) History(ctx context.Context, sessionID, token string) (*api.HistoryResponse, error) {
	const op = "fetch history"
	if token == "" {
		return nil, &api.StatusError{Op: op, Status: http.StatusUnauthorized, Message: "Authentication credentials were not provided."}
	}
	past := b.history.List(ctx, sessionID)
	if len(past) == 0 {
		return nil, &api.StatusError{Op: op, Status: http.StatusNotFound, Message: "Conversation not found"}
	}
	out := &api.HistoryResponse{SessionID: sessionID, Messages: make([]api.HistoryMessage, 0, len(past))}
	for _, m := range past {
		sender := "user"
		if m.Role == openai.ChatMessageRoleAssistant {
			sender = "bot"
		}
		out.Messages = append(out.Messages, api.HistoryMessage{
			ID:        api.FlexID(m.ID),
			Content:   m.Content,
			Sender:    sender,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
			Type:      m.Type,
			Data:      m.Data,
		})
	}
	return out, nil
}

// classify maps a completion failure onto the api error taxonomy so the
// controller treats both backends alike.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &api.StatusError{Op: op, Status: upstream(apiErr.HTTPStatusCode), Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &api.StatusError{Op: op, Status: upstream(reqErr.HTTPStatusCode), Message: reqErr.Error()}
	}
	return &api.NetworkError{Op: op, Err: err}
}

// upstream keeps provider auth failures from looking like an expired user
// session.
func upstream(status int) int {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return http.StatusBadGateway
	}
	return status
}
