package handlers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Envelope is the fixed two-field response every invocation produces.
// Body is a JSON-encoded object {"message": "<string>"}.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type envelopeBody struct {
	Message string `json:"message"`
}

// SuccessEnvelope builds the 200 envelope.
func SuccessEnvelope(message string) Envelope {
	return Envelope{StatusCode: 200, Body: encodeBody(message)}
}

// ErrorEnvelope builds an error envelope with the given status.
func ErrorEnvelope(statusCode int, message string) Envelope {
	return Envelope{StatusCode: statusCode, Body: encodeBody(message)}
}

// encodeBody emits non-ASCII characters literally rather than as \u
// escapes.
func encodeBody(message string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelopeBody{Message: message}); err != nil {
		// Encoding a plain string field cannot fail in practice; keep
		// the envelope invariant anyway.
		return `{"message": "Internal server error"}`
	}
	return strings.TrimRight(buf.String(), "\n")
}
