package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Request is one inbound chat turn.
type Request struct {
	Message   string
	Memory    json.RawMessage
	RequestID string
}

type wireRequest struct {
	Message json.RawMessage `json:"message"`
	Memory  json.RawMessage `json:"memory"`
}

// DecodeRequest parses a /chat body. A body that is not a JSON object, or
// whose message field is missing or not a string, yields ErrMessageRequired.
// Blank messages are left for Reply to reject.
func DecodeRequest(r io.Reader) (Request, error) {
	var wire wireRequest
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMessageRequired, err)
	}
	raw := bytes.TrimSpace(wire.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Request{}, ErrMessageRequired
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return Request{}, fmt.Errorf("%w: message must be a string", ErrMessageRequired)
	}
	return Request{Message: message, Memory: wire.Memory}, nil
}

// compactMemory renders memory as compact JSON. Absent or null memory yields "".
func compactMemory(memory json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(memory)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", fmt.Errorf("relay: compact memory: %w", err)
	}
	return buf.String(), nil
}
