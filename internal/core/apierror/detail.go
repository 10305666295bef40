// Package apierror extracts user-facing messages from backend error bodies.
//
// The backend reports failures as {"detail": "..."} or, for request
// validation failures, {"detail": [{"msg": "..."}, ...]}. All functions are
// pure (no I/O).
package apierror

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Message returns the best message found in an error body: the detail string
// itself, or each entry's msg joined by newlines. Entries without a msg are
// rendered as their JSON. Any other shape yields fallback.
//
// Example:
//
//	Message([]byte(`{"detail":"No institution found"}`), "update failed")
//	// returns "No institution found"
//	Message([]byte(`{"detail":[{"msg":"a"},{"msg":"b"}]}`), "update failed")
//	// returns "a\nb"
func Message(body []byte, fallback string) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return fallback
	}

	detail := bytes.TrimSpace(envelope.Detail)
	switch {
	case len(detail) == 0:
		return fallback
	case detail[0] == '"':
		var s string
		if err := json.Unmarshal(detail, &s); err != nil || s == "" {
			return fallback
		}
		return s
	case detail[0] == '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(detail, &entries); err != nil || len(entries) == 0 {
			return fallback
		}
		lines := make([]string, 0, len(entries))
		for _, raw := range entries {
			lines = append(lines, entryMessage(raw))
		}
		return strings.Join(lines, "\n")
	}
	return fallback
}

func entryMessage(raw json.RawMessage) string {
	var entry struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &entry); err == nil && entry.Msg != "" {
		return entry.Msg
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
