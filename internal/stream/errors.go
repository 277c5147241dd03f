package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is carried by Unknown events whose JSON payload could not
// be decoded. It never terminates a stream.
var ErrMalformedFrame = errors.New("malformed frame")

// TransportError reports a failure of the underlying connection: a non-2xx
// response, or a read error before the stream finished.
type TransportError struct {
	// Op describes what failed, e.g. "request failed".
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("API request failed with status %d", e.Status)
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	default:
		return "transport failure"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the server sends an "error" event.
type ProtocolError struct {
	Payload json.RawMessage
}

func (e *ProtocolError) Error() string {
	if len(e.Payload) == 0 {
		return "stream error event"
	}
	return fmt.Sprintf("stream error event: %s", string(e.Payload))
}

// Field returns the named member of an object payload rendered as a string.
// String members are returned unquoted; anything else as its JSON text.
func (e *ProtocolError) Field(key string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(e.Payload, &obj); err != nil {
		return ""
	}
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
