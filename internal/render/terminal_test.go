package render

import (
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/markis/difychat/internal/stream"
)

func feed(chunks ...stream.Chunk) <-chan stream.Chunk {
	ch := make(chan stream.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

// cancellingSource hands out its chunks, then cancels the context and
// reports the cancellation the way an HTTP body does.
type cancellingSource struct {
	chunks []string
	cancel context.CancelFunc
	ctx    context.Context
}

func (s *cancellingSource) Next(context.Context) (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	s.cancel()
	return "", s.ctx.Err()
}

var _ = Describe("TerminalRenderer", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = &bytes.Buffer{}
	})

	Context("in plain mode", func() {
		It("prints fragments verbatim and returns the result", func() {
			r := NewTerminalRenderer(out, true, 80)
			res, err := r.Render(feed(
				stream.Chunk{Content: "Hello "},
				stream.Chunk{Content: "world\n\nNext"},
				stream.Chunk{Done: true, Result: &stream.Result{Answer: "Hello world\n\nNext", ConversationID: "c"}},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal("Hello world\n\nNext\n"))
			Expect(res.ConversationID).To(Equal("c"))
		})

		It("prints the raw fallback when no fragment was streamed", func() {
			r := NewTerminalRenderer(out, true, 80)
			_, err := r.Render(feed(
				stream.Chunk{Done: true, Result: &stream.Result{Answer: "raw body", RawFallback: true}},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal("raw body\n"))
		})

		It("stops at a stream error", func() {
			r := NewTerminalRenderer(out, true, 80)
			_, err := r.Render(feed(
				stream.Chunk{Content: "partial"},
				stream.Chunk{Error: errors.New("boom")},
			))
			Expect(err).To(MatchError("stream error: boom"))
		})

		It("fails when the channel closes without a final chunk", func() {
			r := NewTerminalRenderer(out, true, 80)
			_, err := r.Render(feed(stream.Chunk{Content: "partial"}))
			Expect(err).To(MatchError(ErrIncompleteStream))
		})

		It("fails when the stream is cancelled part way through", func() {
			for range 50 {
				ctx, cancel := context.WithCancel(context.Background())
				src := &cancellingSource{
					chunks: []string{"data: partial\n\n"},
					cancel: cancel,
					ctx:    ctx,
				}
				p := stream.NewParser(ctx)
				go p.Process(src)

				_, err := NewTerminalRenderer(&bytes.Buffer{}, true, 80).Render(p.Chunks())
				Expect(err).To(MatchError(context.Canceled))
				cancel()
			}
		})

		It("renders a complete result", func() {
			r := NewTerminalRenderer(out, true, 80)
			Expect(r.RenderResult(stream.Result{Answer: "done"})).To(Succeed())
			Expect(out.String()).To(Equal("done\n"))
		})
	})

	Context("in markdown mode", func() {
		It("renders markdown content", func() {
			r := NewTerminalRenderer(out, false, 80)
			_, err := r.Render(feed(
				stream.Chunk{Content: "# Title\n\n"},
				stream.Chunk{Content: "Some **bold** text"},
				stream.Chunk{Done: true, Result: &stream.Result{Answer: "# Title\n\nSome **bold** text"}},
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(ContainSubstring("Title"))
			Expect(out.String()).To(ContainSubstring("bold"))
		})
	})

	Describe("Footer", func() {
		It("prints the identifiers", func() {
			NewTerminalRenderer(out, true, 80).Footer(stream.Result{ConversationID: "c-1", TaskID: "t-1"})
			Expect(out.String()).To(ContainSubstring("conversation c-1"))
			Expect(out.String()).To(ContainSubstring("task t-1"))
		})

		It("prints nothing without identifiers", func() {
			NewTerminalRenderer(out, true, 80).Footer(stream.Result{})
			Expect(out.String()).To(BeEmpty())
		})
	})

	It("finds the last paragraph break", func() {
		Expect(findMarkdownBreakPoint("a\n\nb\n\nc")).To(Equal(6))
		Expect(findMarkdownBreakPoint("abc")).To(Equal(-1))
	})
})
