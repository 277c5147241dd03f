package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/cli/go-gh/v2/pkg/markdown"

	"github.com/markis/difychat/internal/stream"
)

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type TerminalRenderer struct {
	out       io.Writer
	markdown  *glamour.TermRenderer
	plainText bool
	buffer    strings.Builder
	rendered  bool
}

func NewTerminalRenderer(out io.Writer, usePlainText bool, wrap int) *TerminalRenderer {
	var md *glamour.TermRenderer
	if !usePlainText {
		md, _ = glamour.NewTermRenderer(
			markdown.WithWrap(wrap),
			glamour.WithAutoStyle(),
		)
	}

	return &TerminalRenderer{
		out:       out,
		markdown:  md,
		plainText: usePlainText || md == nil,
	}
}

// ErrIncompleteStream is returned when the chunk channel closes without a
// final Done or Error chunk.
var ErrIncompleteStream = errors.New("stream ended without a result")

// Render prints fragments as they arrive, flushing at paragraph breaks, and
// returns the final result.
func (t *TerminalRenderer) Render(chunks <-chan stream.Chunk) (stream.Result, error) {
	var (
		result stream.Result
		done   bool
	)
	for chunk := range chunks {
		if chunk.Error != nil {
			return stream.Result{}, fmt.Errorf("stream error: %w", chunk.Error)
		}
		if chunk.Done && chunk.Result != nil {
			result = *chunk.Result
			done = true
			continue
		}

		t.buffer.WriteString(chunk.Content)
		content := t.buffer.String()

		if idx := findMarkdownBreakPoint(content); idx > 0 {
			if err := t.renderContent(content[:idx]); err != nil {
				return stream.Result{}, err
			}
			// Reset buffer with remaining content
			remaining := content[idx:]
			t.buffer.Reset()
			t.buffer.WriteString(remaining)
		}
	}

	// Render any remaining content
	if remaining := t.buffer.String(); remaining != "" {
		if err := t.renderContent(remaining); err != nil {
			return stream.Result{}, err
		}
	}

	if !done {
		return stream.Result{}, ErrIncompleteStream
	}

	// Nothing decoded: show the raw reply rather than an empty screen.
	if !t.rendered && result.Answer != "" {
		if err := t.renderContent(result.Answer); err != nil {
			return stream.Result{}, err
		}
	}

	fmt.Fprintln(t.out)
	return result, nil
}

// RenderResult prints a complete answer, used when nothing was streamed.
func (t *TerminalRenderer) RenderResult(res stream.Result) error {
	if res.Answer != "" {
		if err := t.renderContent(res.Answer); err != nil {
			return err
		}
	}
	fmt.Fprintln(t.out)
	return nil
}

// Footer prints the identifiers needed to continue or stop the conversation.
func (t *TerminalRenderer) Footer(res stream.Result) {
	var parts []string
	if res.ConversationID != "" {
		parts = append(parts, "conversation "+res.ConversationID)
	}
	if res.TaskID != "" {
		parts = append(parts, "task "+res.TaskID)
	}
	if len(parts) == 0 {
		return
	}
	fmt.Fprintln(t.out, dimStyle.Render(strings.Join(parts, " · ")))
}

// Failure prints a one-line error marker.
func Failure(out io.Writer, err error) {
	fmt.Fprintln(out, failStyle.Render("✗")+" "+err.Error())
}

func (t *TerminalRenderer) renderContent(content string) error {
	t.rendered = true
	if t.plainText {
		fmt.Fprint(t.out, content)
		return nil
	}

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "#") {
		fmt.Fprintln(t.out)
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return nil
}

func findMarkdownBreakPoint(content string) int {
	const marker string = "\n\n"
	lastBreak := -1
	idx := strings.LastIndex(content, marker)
	if idx > lastBreak {
		lastBreak = idx + len(marker)
	}
	return lastBreak
}
