package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/comigor/ethiochat/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.APIConfig{BaseURL: srv.URL + "/api/chatbot/", Timeout: 2 * time.Second})
}

func TestSendRequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chatbot/message/message/", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hello", body["message"])
		require.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", body["session_id"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"session_id":"3fa85f64-5717-4562-b3fc-2c963f66afa6","response":{"content":"Selam!","timestamp":"2025-05-09T11:18:08Z","suggestions":["Visa cost"]}}`)
	})

	resp, err := c.Send(context.Background(), SendRequest{Message: "hello", SessionID: "3fa85f64-5717-4562-b3fc-2c963f66afa6", Token: "tok"})
	require.NoError(t, err)
	require.Equal(t, "Selam!", resp.Response.Content)
	require.Equal(t, []string{"Visa cost"}, resp.Response.Suggestions)
}

func TestSendOmitsEmptySessionID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["session_id"]
		require.False(t, present)
		io.WriteString(w, `{"session_id":"x","response":{"content":"ok"}}`)
	})
	_, err := c.Send(context.Background(), SendRequest{Message: "hi", Token: "tok"})
	require.NoError(t, err)
}

func TestHistoryDecodesMixedIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/chatbot/message/history/", r.URL.Path)
		require.Equal(t, "abc", r.URL.Query().Get("session_id"))
		io.WriteString(w, `{"session_id":"abc","messages":[
			{"id":12,"content":"hi","sender":"user","created_at":"2025-05-09T11:18:08Z"},
			{"id":"m-2","content":"Weather in Gondar","sender":"bot","created_at":"2025-05-09T11:18:09Z","type":"weather","data":{"location":"Gondar","temperature":"26°C","condition":"Partly cloudy"}}
		]}`)
	})

	h, err := c.History(context.Background(), "abc", "tok")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	require.Equal(t, FlexID("12"), h.Messages[0].ID)
	require.Equal(t, FlexID("m-2"), h.Messages[1].ID)
	require.Equal(t, "weather", h.Messages[1].Type)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		body        string
		authExpired bool
		sessionBad  bool
		sessionGone bool
		wantSummary string
	}{
		{"unauthorized", 401, `{"detail":"Given token not valid"}`, true, false, false, "Given token not valid"},
		{"forbidden", 403, `{"error":"Conversation belongs to another user"}`, true, false, true, "Conversation belongs to another user"},
		{"not found", 404, `{"error":"Conversation not found"}`, false, true, true, "Conversation not found"},
		{"validation", 400, `{"error":{"session_id":["Must be a valid UUID."]}}`, false, true, false, `{"session_id":["Must be a valid UUID."]}`},
		{"other field", 400, `{"error":{"message":["This field may not be blank."],"detail":"see session_id docs"}}`, false, false, false, `{"message":["This field may not be blank."],"detail":"see session_id docs"}`},
		{"invalid session text", 400, `{"error":"Invalid session_id supplied"}`, false, true, false, "Invalid session_id supplied"},
		{"rate limit", 429, `{"error":"Rate limit exceeded. Please try again later."}`, false, false, false, "Rate limit exceeded. Please try again later."},
		{"plain text", 502, "Bad Gateway", false, false, false, "Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			_, err := c.Send(context.Background(), SendRequest{Message: "x", Token: "t"})
			var se *StatusError
			require.True(t, errors.As(err, &se))
			require.Equal(t, tc.status, se.Status)
			require.Equal(t, tc.wantSummary, se.Message)
			require.Equal(t, tc.authExpired, IsAuthExpired(err))
			require.Equal(t, tc.sessionBad, IsSessionInvalid(err))
			require.Equal(t, tc.sessionGone, IsSessionGone(err))
			require.False(t, IsNetwork(err))
		})
	}
}

func TestFlexIDMarshal(t *testing.T) {
	cases := map[FlexID]string{
		"12":  `12`,
		"-3":  `-3`,
		"007": `"007"`,
		"+5":  `"+5"`,
		"m-2": `"m-2"`,
		"":    `""`,
	}
	for id, want := range cases {
		b, err := json.Marshal(id)
		require.NoError(t, err)
		require.Equal(t, want, string(b), "FlexID(%q)", string(id))
		require.True(t, json.Valid(b))
	}
}

func TestSummarizeKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", 299) + strings.Repeat("é", 10)
	got := summarize([]byte(body))
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("a", 299)+"…", got)

	require.Equal(t, "short", summarize([]byte("  short  ")))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(config.APIConfig{BaseURL: base})
	_, err := c.Send(context.Background(), SendRequest{Message: "x", Token: "t"})
	require.True(t, IsNetwork(err))
	require.False(t, IsAuthExpired(err))
}

func TestContextDeadlineIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, SendRequest{Message: "x", Token: "t"})
	require.True(t, IsNetwork(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
