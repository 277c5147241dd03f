package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Stop asks the service to abort the generation identified by taskID.
func (c *Client) Stop(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errors.New("task id is required")
	}
	query, err := c.appQuery()
	if err != nil {
		return err
	}
	target := c.endpoint(chatPath+"/"+url.PathEscape(taskID)+"/stop", query)
	resp, err := c.do(ctx, http.MethodPost, target, map[string]string{"user": c.user}, "application/json")
	if err != nil {
		return err
	}
	c.closeBody(resp)
	return nil
}
