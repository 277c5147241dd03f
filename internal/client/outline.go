package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const outlineUser = "outline_generator"

// OutlineRequest describes the document an outline is generated for.
type OutlineRequest struct {
	Title       string
	Keywords    string
	Field       string
	OutlineType string
	Language    string
}

func (r OutlineRequest) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate an outline for a %s in the field of %s.\n", r.OutlineType, r.Field)
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	fmt.Fprintf(&b, "Keywords: %s\n", r.Keywords)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "1. Write in %s.\n", r.Language)
	b.WriteString("2. Include a title, an introduction, 3-5 main sections and a conclusion.\n")
	b.WriteString("3. Give each section 2-3 subsections.\n")
	b.WriteString("4. Keep an academic tone.\n")
	b.WriteString("Reply with the outline only, without extra explanation.\n")
	return b.String()
}

// GenerateOutline asks the app for an outline and returns its non-blank
// lines in order.
func (c *Client) GenerateOutline(ctx context.Context, req OutlineRequest) ([]string, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("outline title is required")
	}
	res, err := c.Ask(ctx, ChatRequest{Query: req.prompt(), User: outlineUser})
	if err != nil {
		return nil, fmt.Errorf("failed to generate outline: %w", err)
	}
	return splitOutline(res.Answer), nil
}

func splitOutline(answer string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(answer), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
