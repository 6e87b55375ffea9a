package parser

import (
	"context"
	"fmt"
)

// LegacyParser claims the binary Word format so callers get a clear message
// instead of a generic unsupported-format error.
type LegacyParser struct{}

func (p *LegacyParser) SupportedFormats() []string { return []string{"doc"} }

func (p *LegacyParser) Parse(ctx context.Context, path, mediaDir string) (*ParseResult, error) {
	return nil, fmt.Errorf("%w: legacy .doc files must be saved as .docx first", ErrUnsupportedFormat)
}
