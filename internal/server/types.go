// Package server defines the wire envelope and shared helpers reused across
// client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Envelope is the JSON frame exchanged over the WebSocket: an event name plus
// an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outEnvelope is the outbound counterpart; Data is marshaled in place.
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// errorPayload is the body of every *Error event.
type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
