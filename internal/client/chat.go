package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markis/difychat/internal/config"
	"github.com/markis/difychat/internal/stream"
)

const (
	chatPath   = "/api/dify/chat-messages"
	healthPath = "/health"

	defaultUser = "anonymous"
)

// ErrNoApp is returned when a chat call is made without an app id.
var ErrNoApp = errors.New("no app id configured")

// ChatRequest is the body sent to the chat endpoint.
type ChatRequest struct {
	Query            string         `json:"query"`
	Inputs           map[string]any `json:"inputs"`
	User             string         `json:"user"`
	ConversationID   string         `json:"conversationId,omitempty"`
	Files            []string       `json:"files"`
	AutoGenerateName bool           `json:"autoGenerateName"`
}

// Client talks to the chat service.
type Client struct {
	baseURL    string
	appID      string
	user       string
	httpClient *http.Client
	logger     *zap.Logger
	decodeOpts []stream.Option
}

type Option func(*Client)

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAppID overrides the configured app.
func WithAppID(appID string) Option {
	return func(c *Client) {
		c.appID = appID
	}
}

// New returns a Client for the service described by cfg.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	policy, ok := stream.ParseDelimiterPolicy(cfg.Stream.DelimiterPolicy)
	if !ok {
		return nil, fmt.Errorf("unknown delimiter policy %q", cfg.Stream.DelimiterPolicy)
	}

	c := &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		appID:   cfg.AppID,
		user:    cfg.User,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.user == "" {
		c.user = defaultUser
	}
	c.decodeOpts = []stream.Option{
		stream.WithDelimiterPolicy(policy),
		stream.WithFallbackThreshold(cfg.Stream.FallbackThreshold),
		stream.WithLogger(c.logger.Named("stream")),
	}
	return c, nil
}

// getHTTPClient returns a singleton HTTP client
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
	defaultTimeout = 10 * time.Minute
)

func getHTTPClient(ctx context.Context) *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
			DisableKeepAlives:  false,
			ForceAttemptHTTP2:  true,
		}

		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext

		httpClient = &http.Client{
			Transport: transport,
		}
	})

	// Check if there's a timeout in the context
	if deadline, ok := ctx.Deadline(); ok {
		clientCopy := *httpClient
		clientCopy.Timeout = time.Until(deadline)
		return &clientCopy
	}

	clientCopy := *httpClient
	clientCopy.Timeout = defaultTimeout
	return &clientCopy
}

func (c *Client) getClient(ctx context.Context) *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return getHTTPClient(ctx)
}

// prepareInput fills the fields the service expects to be present.
func (c *Client) prepareInput(req ChatRequest) ChatRequest {
	if req.Inputs == nil {
		req.Inputs = map[string]any{}
	}
	if req.Files == nil {
		req.Files = []string{}
	}
	if req.User == "" {
		req.User = c.user
	}
	return req
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) appQuery() (url.Values, error) {
	if c.appID == "" {
		return nil, ErrNoApp
	}
	return url.Values{"appId": {c.appID}}, nil
}

// do sends a JSON request and returns the response once the status is known
// to be 2xx. Any other status is reported as a *stream.TransportError
// carrying the response text.
func (c *Client) do(ctx context.Context, method, target string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("X-Request-Id", requestID)

	log := c.logger.With(zap.String("request_id", requestID))
	log.Debug("sending request", zap.String("method", method), zap.String("url", target))

	start := time.Now()
	resp, err := c.getClient(ctx).Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("request cancelled: %w", cerr)
		}
		return nil, &stream.TransportError{Op: "request failed", Err: err}
	}
	log.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer c.closeBody(resp)
		text, _ := io.ReadAll(resp.Body)
		return nil, &stream.TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	return resp, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("failed to close response body", zap.Error(err))
	}
}

// Open sends a streaming chat request and returns the response body as a
// stream.Source. Decoding it closes the body.
func (c *Client) Open(ctx context.Context, req ChatRequest) (*stream.ReaderSource, error) {
	query, err := c.appQuery()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(chatPath, query), c.prepareInput(req), "text/event-stream")
	if err != nil {
		return nil, err
	}
	return stream.NewReaderSource(resp.Body, 0), nil
}

// Ask sends req and decodes the streamed reply into a single result.
func (c *Client) Ask(ctx context.Context, req ChatRequest) (stream.Result, error) {
	src, err := c.Open(ctx, req)
	if err != nil {
		return stream.Result{}, err
	}
	res, err := stream.Decode(ctx, src, c.decodeOpts...)
	if err != nil {
		return stream.Result{}, err
	}
	c.logger.Debug("chat finished",
		zap.Int("answer_len", len(res.Answer)),
		zap.String("conversation_id", res.ConversationID),
	)
	return res, nil
}

// AskStream sends req and returns a Parser already consuming the reply, for
// callers that render fragments as they arrive.
func (c *Client) AskStream(ctx context.Context, req ChatRequest) (*stream.Parser, error) {
	src, err := c.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	p := stream.NewParser(ctx, c.decodeOpts...)
	go p.Process(src)
	return p, nil
}
