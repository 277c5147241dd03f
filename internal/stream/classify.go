package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	dataPrefix  = "data:"
	eventPrefix = "event:"
	doneMarker  = "[DONE]"
)

// envelope is the JSON shape of a structured data frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageData struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	ID             string `json:"id"`
	TaskID         string `json:"task_id"`
}

type agentMessageData struct {
	Text string `json:"text"`
}

// Classify parses one frame into an Event. It never fails: anything it
// cannot interpret comes back as Unknown.
func Classify(frame string) Event {
	text := strings.TrimSpace(frame)
	switch {
	case text == "":
		return Unknown{}
	case strings.HasPrefix(text, eventPrefix):
		// Type hint only; the data frame that follows carries the payload.
		return Unknown{Raw: text}
	case strings.HasPrefix(text, dataPrefix):
		return classifyData(strings.TrimSpace(text[len(dataPrefix):]))
	default:
		return Unknown{Raw: text}
	}
}

func classifyData(content string) Event {
	switch {
	case content == "":
		return Unknown{}
	case content == doneMarker:
		return DoneEvent{}
	case strings.HasPrefix(content, "{"):
		// Deliberately no closing-brace check: a truncated object is skipped
		// as malformed instead of leaking into the answer.
		return classifyJSON(content)
	default:
		// Not JSON-shaped: some servers stream the answer as plain text.
		return Message{Answer: content}
	}
}

func classifyJSON(content string) Event {
	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return Unknown{Raw: content, Cause: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}

	switch env.Event {
	case "message":
		var d messageData
		// A data member of the wrong shape just yields an empty message.
		_ = json.Unmarshal(env.Data, &d)
		return Message{
			Answer:         d.Answer,
			ConversationID: d.ConversationID,
			MessageID:      d.ID,
			TaskID:         d.TaskID,
		}
	case "agent_message":
		var d agentMessageData
		_ = json.Unmarshal(env.Data, &d)
		return AgentMessage{Text: d.Text}
	case "error":
		return ErrorEvent{Payload: env.Data}
	case "done":
		return DoneEvent{}
	default:
		return Unknown{Raw: content}
	}
}
