package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser accepts markup that was converted ahead of time (pandoc .tex,
// or plain text and markdown in the same convention).
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"tex", "txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path, mediaDir string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyDocument
	}
	return &ParseResult{
		Markup: string(data),
		Method: "text",
	}, nil
}
