package stream

import "encoding/json"

// Event is a classified frame. The concrete type is one of Message,
// AgentMessage, ErrorEvent, DoneEvent or Unknown.
type Event interface {
	isEvent()
}

// Message is a "message" event, or a plain-text data frame.
type Message struct {
	Answer         string
	ConversationID string
	MessageID      string
	TaskID         string
}

// AgentMessage is an "agent_message" event carrying an incremental text piece.
type AgentMessage struct {
	Text string
}

// ErrorEvent is an "error" event. Payload is the raw "data" member.
type ErrorEvent struct {
	Payload json.RawMessage
}

// DoneEvent marks the logical end of the answer ("[DONE]" or a "done" event).
type DoneEvent struct{}

// Unknown is anything the aggregator ignores: blank frames, "event:" hints,
// unrecognized event names and frames that failed to decode. Cause is nil
// unless the frame was malformed, in which case it wraps ErrMalformedFrame.
type Unknown struct {
	Raw   string
	Cause error
}

func (Message) isEvent()      {}
func (AgentMessage) isEvent() {}
func (ErrorEvent) isEvent()   {}
func (DoneEvent) isEvent()    {}
func (Unknown) isEvent()      {}

// Fragment returns the answer text an event contributes, or "".
func Fragment(ev Event) string {
	switch e := ev.(type) {
	case Message:
		return e.Answer
	case AgentMessage:
		return e.Text
	default:
		return ""
	}
}
