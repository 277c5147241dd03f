package stream

import (
	"context"
	"io"
)

// DefaultReadSize is the read buffer size used by ReaderSource.
const DefaultReadSize = 4096

// ReaderSource adapts an io.Reader, typically an HTTP response body, to a
// Source. Each Next call returns whatever a single Read produced, so chunk
// boundaries are wherever the network put them.
type ReaderSource struct {
	r   io.Reader
	buf []byte
	err error
}

// NewReaderSource returns a Source reading r in pieces of at most size
// bytes. A size <= 0 selects DefaultReadSize.
func NewReaderSource(r io.Reader, size int) *ReaderSource {
	if size <= 0 {
		size = DefaultReadSize
	}
	return &ReaderSource{r: r, buf: make([]byte, size)}
}

// Next returns the next non-empty chunk, or the reader's terminal error.
// ctx is only checked between reads: cancelling a blocked Read is up to the
// reader, as an HTTP response body does when its request context ends.
func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := s.r.Read(s.buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			return string(s.buf[:n]), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Close closes the underlying reader if it is an io.Closer.
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
