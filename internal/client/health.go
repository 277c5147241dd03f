package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/markis/difychat/internal/stream"
)

// Availability reports whether the service answered its health probe.
type Availability struct {
	Available      bool   `json:"available"`
	SupportsStream bool   `json:"supports_stream"`
	SupportsBlock  bool   `json:"supports_block"`
	Error          string `json:"error,omitempty"`
}

// Health probes the service. It never returns an error; failures are
// reported in Availability.Error.
func (c *Client) Health(ctx context.Context) Availability {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(healthPath, nil), nil, "")
	if err != nil {
		var terr *stream.TransportError
		if errors.As(err, &terr) && terr.Status != 0 {
			return Availability{Error: fmt.Sprintf("service unavailable, status %d", terr.Status)}
		}
		return Availability{Error: fmt.Sprintf("health check failed: %v", err)}
	}
	c.closeBody(resp)

	// Both modes are served by every deployment of the chat endpoint.
	return Availability{Available: true, SupportsStream: true, SupportsBlock: true}
}
