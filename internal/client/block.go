package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/markis/difychat/internal/stream"
)

const blockPath = chatPath + "/block"

// blockResponse is the subset of the blocking reply the client reads.
type blockResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	ID             string `json:"id"`
	TaskID         string `json:"task_id"`
}

// AskBlock sends req to the blocking endpoint, which replies with one JSON
// document instead of an event stream.
func (c *Client) AskBlock(ctx context.Context, req ChatRequest) (stream.Result, error) {
	query, err := c.appQuery()
	if err != nil {
		return stream.Result{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(blockPath, query), c.prepareInput(req), "application/json")
	if err != nil {
		return stream.Result{}, err
	}
	defer c.closeBody(resp)

	var body blockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return stream.Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	messageID := body.MessageID
	if messageID == "" {
		messageID = body.ID
	}
	return stream.Result{
		Answer:         body.Answer,
		ConversationID: body.ConversationID,
		MessageID:      messageID,
		TaskID:         body.TaskID,
	}, nil
}
