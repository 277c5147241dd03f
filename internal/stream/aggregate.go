package stream

import (
	"fmt"
	"strings"
)

// Result is the aggregated answer of one stream.
type Result struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	TaskID         string `json:"task_id,omitempty"`

	// RawFallback is set when no fragment was decoded and Answer holds the
	// raw received text instead.
	RawFallback bool `json:"-"`
}

// Aggregator folds events into a Result. Fragments keep arrival order.
type Aggregator struct {
	fragments      []string
	conversationID string
	messageID      string
	taskID         string
	raw            strings.Builder
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record keeps a copy of raw transport text for the last-resort fallback.
func (a *Aggregator) Record(chunk string) {
	a.raw.WriteString(chunk)
}

// Apply folds ev into the accumulator. An ErrorEvent is returned as a
// *ProtocolError right away.
func (a *Aggregator) Apply(ev Event) error {
	switch e := ev.(type) {
	case Message:
		if e.Answer != "" {
			a.fragments = append(a.fragments, e.Answer)
		}
		if e.ConversationID != "" {
			a.conversationID = e.ConversationID
		}
		if e.MessageID != "" {
			a.messageID = e.MessageID
		}
		if e.TaskID != "" {
			a.taskID = e.TaskID
		}
	case AgentMessage:
		if e.Text != "" {
			a.fragments = append(a.fragments, e.Text)
		}
	case ErrorEvent:
		return &ProtocolError{Payload: e.Payload}
	case DoneEvent, Unknown:
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
	return nil
}

// Fragments returns a copy of the answer fragments collected so far.
func (a *Aggregator) Fragments() []string {
	return append([]string(nil), a.fragments...)
}

// Finalize joins the fragments into a Result. It does not mutate the
// aggregator, so repeated calls return the same value.
func (a *Aggregator) Finalize() Result {
	res := Result{
		Answer:         strings.Join(a.fragments, ""),
		ConversationID: a.conversationID,
		MessageID:      a.messageID,
		TaskID:         a.taskID,
	}
	if res.Answer == "" && a.raw.Len() > 0 {
		res.Answer = a.raw.String()
		res.RawFallback = true
	}
	return res
}
