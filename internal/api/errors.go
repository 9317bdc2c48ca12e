package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op     string
	Status int
	// Message is the summarised error text: the "error"/"detail" field of a
	// JSON body, or the raw body.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
}

// NetworkError means the request never completed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

var sessionMarkers = []string{
	"invalid session",
	"session not found",
	"conversation not found",
	"belongs to another user",
}

// IsAuthExpired reports a 401/403 answer.
func IsAuthExpired(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
}

// IsSessionInvalid reports a non-auth error whose body names the session as
// invalid or unknown.
func IsSessionInvalid(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || IsAuthExpired(err) {
		return false
	}
	msg := strings.ToLower(se.Message)
	for _, m := range sessionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return sessionFieldRejected(se.Message)
}

// sessionFieldRejected reports a field validation body such as
// {"session_id":["Must be a valid UUID."]}.
func sessionFieldRejected(msg string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg), &fields); err != nil {
		return false
	}
	_, ok := fields["session_id"]
	return ok
}

// IsSessionGone reports a 403/404 answer to a history fetch.
func IsSessionGone(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusForbidden || se.Status == http.StatusNotFound
}

// IsNetwork reports a request that never completed.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// summarize extracts a human readable message from an error body.
func summarize(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"error", "detail", "message"} {
			raw, ok := obj[k]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				return s
			}
			return strings.TrimSpace(string(raw))
		}
	}
	const max = 300
	if len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "…"
	}
	return text
}
