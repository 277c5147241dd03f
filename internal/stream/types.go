package stream

import "context"

// Chunk represents a processed piece of content from the stream
type Chunk struct {
	Content string
	Done    bool
	Result  *Result
	Error   error
}

// Parser runs a decode in the background and publishes answer fragments as
// they arrive, for callers that want to render before the stream ends.
type Parser struct {
	ctx    context.Context
	chunks chan Chunk
	opts   []Option

	result Result
	err    error
}

func NewParser(ctx context.Context, opts ...Option) *Parser {
	return &Parser{
		ctx:    ctx,
		chunks: make(chan Chunk),
		opts:   opts,
	}
}

func (p *Parser) Chunks() <-chan Chunk {
	return p.chunks
}

// Result returns the decode outcome. It is valid once Chunks is closed.
func (p *Parser) Result() (Result, error) {
	return p.result, p.err
}
