package api

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
)

// Conversation is the contract the controller relies on. The REST client and
// the LLM backend both implement it; tests use fakes.
type Conversation interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
	History(ctx context.Context, sessionID, token string) (*HistoryResponse, error)
}

type SendRequest struct {
	Message   string
	SessionID string
	Token     string
}

type sendBody struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type SendResponse struct {
	SessionID string `json:"session_id"`
	Response  Reply  `json:"response"`
}

type Reply struct {
	Content     string          `json:"content"`
	Timestamp   string          `json:"timestamp"`
	Type        string          `json:"type,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

type HistoryResponse struct {
	SessionID string           `json:"session_id,omitempty"`
	Messages  []HistoryMessage `json:"messages"`
}

type HistoryMessage struct {
	ID        FlexID          `json:"id"`
	Content   string          `json:"content"`
	Sender    string          `json:"sender"`
	CreatedAt string          `json:"created_at"`
	Type      string          `json:"type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// FlexID accepts ids the backend encodes either as numbers or strings.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(f), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(f) {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}
