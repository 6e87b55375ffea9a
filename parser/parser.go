package parser

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedFormat = errors.New("parser: unsupported format")
	ErrPandocNotFound    = errors.New("parser: pandoc not found in PATH")
	ErrEmptyDocument     = errors.New("parser: converter produced no text")
)

// ParseResult is what a converter produces from a source document.
type ParseResult struct {
	Markup   string      // LaTeX-flavoured text; images appear as \includegraphics{media/<name>}
	Tables   []string    // HTML tables found in the document, in document order
	Media    []MediaFile // Files written to the media directory
	Method   string      // "pandoc", "native", "pdf", "text"
	Metadata map[string]string
}

// Parser converts a source document into markup. Embedded media is written
// flat into mediaDir, named by basename.
type Parser interface {
	Parse(ctx context.Context, path, mediaDir string) (*ParseResult, error)
	SupportedFormats() []string
}
