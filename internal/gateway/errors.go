package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnavailable = errors.New("upstream temporarily unavailable")

// APIError is a non-2xx answer from an upstream endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// parseError reads {"error":"..."} or {"error":{"message":"..."}}, else falls back to generic.
func parseError(status int, body []byte, generic string) *APIError {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return &APIError{Status: status, Message: generic}
	}

	var msg string
	if err := json.Unmarshal(payload.Error, &msg); err == nil && strings.TrimSpace(msg) != "" {
		return &APIError{Status: status, Message: msg}
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
		return &APIError{Status: status, Message: nested.Message}
	}
	return &APIError{Status: status, Message: generic}
}

// UserMessage returns the human-readable message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
