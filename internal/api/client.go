// Package api talks to the conversational message endpoint of the travel
// backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/logger"
)

// Client is the REST implementation of Conversation.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for cfg.BaseURL, e.g.
// https://ai-driven-travel.onrender.com/api/chatbot.
func NewClient(cfg config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send posts a user message and returns the assistant reply.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	const op = "send message"
	body, err := json.Marshal(sendBody{Message: req.Message, SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/message/message/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out SendResponse
	if err := c.do(httpReq, op, req.Token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches the canonical conversation for sessionID.
func (c *Client) History(ctx context.Context, sessionID, token string) (*HistoryResponse, error) {
	const op = "fetch history"
	u := c.base + "/message/history/?session_id=" + url.QueryEscape(sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out HistoryResponse
	if err := c.do(httpReq, op, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, op, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.client.Do(req)
	if err != nil {
		logger.L.Warn("chat api request failed", "op", op, "error", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Op: op, Status: resp.StatusCode, Message: summarize(body)}
		logger.L.Warn("chat api returned error", "op", op, "status", resp.StatusCode, "error", se.Message)
		return se
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
