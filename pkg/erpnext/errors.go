package erpnext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the ERP with whatever detail the
// server included. Frappe error payloads vary: exc_type plus a Python
// traceback on newer sites, bare "message" on older ones, and
// _server_messages (a JSON string of JSON strings) for user-facing text.
type APIError struct {
	StatusCode     int
	ExcType        string
	Message        string
	ServerMessages []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && len(e.ServerMessages) > 0 {
		msg = e.ServerMessages[0]
	}
	if msg == "" {
		return fmt.Sprintf("ERP returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ERP returned status %d: %s", e.StatusCode, msg)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var payload struct {
		ExcType        string `json:"exc_type"`
		Exception      string `json:"exception"`
		Message        string `json:"message"`
		ServerMessages string `json:"_server_messages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Not JSON (proxy error page, HTML). Keep a trimmed preview.
		apiErr.Message = previewText(string(body))
		return apiErr
	}

	apiErr.ExcType = payload.ExcType
	apiErr.ServerMessages = decodeServerMessages(payload.ServerMessages)
	switch {
	case payload.Message != "":
		apiErr.Message = payload.Message
	case payload.Exception != "":
		apiErr.Message = payload.Exception
	case len(apiErr.ServerMessages) > 0:
		apiErr.Message = apiErr.ServerMessages[0]
	}
	return apiErr
}

// decodeServerMessages unwraps _server_messages: a JSON array of strings,
// each itself a JSON object with a "message" field. Any layer failing to
// parse falls back to the raw text of that layer.
func decodeServerMessages(raw string) []string {
	if raw == "" {
		return nil
	}
	var outer []string
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return []string{previewText(raw)}
	}
	messages := make([]string, 0, len(outer))
	for _, entry := range outer {
		var inner struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(entry), &inner); err == nil && inner.Message != "" {
			messages = append(messages, stripHTMLTags(inner.Message))
		} else {
			messages = append(messages, previewText(entry))
		}
	}
	return messages
}

func previewText(s string) string {
	s = strings.TrimSpace(s)
	const limit = 200
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// stripHTMLTags drops markup from server messages; Frappe wraps them in
// anchor and bold tags meant for its own web UI.
func stripHTMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Friendly rewrites known domain conflicts into messages fit for a person.
// Everything else passes through unchanged.
func Friendly(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	text := apiErr.Message
	for _, m := range apiErr.ServerMessages {
		text += " " + m
	}
	lower := strings.ToLower(text)

	switch {
	case apiErr.ExcType == "OverlapError" || strings.Contains(lower, "overlap"):
		return "leave already applied for these dates"
	case strings.Contains(lower, "insufficient leave balance"):
		return "not enough leave balance for this application"
	case apiErr.StatusCode == 401 || strings.Contains(lower, "not permitted") ||
		strings.Contains(lower, "authentication"):
		return "signed out by the server, check credentials or log in again"
	case apiErr.StatusCode == 409 || apiErr.ExcType == "DuplicateEntryError":
		return "a matching record already exists"
	default:
		return apiErr.Error()
	}
}
