package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// Converter names accepted by NewRegistry.
const (
	ConverterAuto   = "auto"
	ConverterPandoc = "pandoc"
	ConverterNative = "native"
)

type Registry struct {
	parsers map[string]Parser
}

// NewRegistry registers the built-in converters. converter picks how .docx
// is handled: "pandoc" always shells out, "native" never does and "auto"
// tries pandoc and falls back to the native reader when it is missing.
func NewRegistry(converter, pandocBin string) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	pandoc := &PandocParser{Bin: pandocBin}
	native := &DOCXParser{}
	var docx Parser
	switch converter {
	case ConverterPandoc:
		docx = pandoc
	case ConverterNative:
		docx = native
	default:
		docx = &fallbackParser{primary: pandoc, secondary: native}
	}

	for _, p := range []Parser{docx, &PDFParser{}, &TextParser{}, &LegacyParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// ForPath returns the parser for the file's extension.
func (r *Registry) ForPath(path string) (Parser, string, error) {
	format := FormatOf(path)
	p, err := r.Get(format)
	return p, format, err
}

// Formats lists every registered format in sorted order.
func (r *Registry) Formats() []string {
	return slices.Sorted(maps.Keys(r.parsers))
}

// FormatOf is the lower-cased file extension without its dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// fallbackParser uses secondary only when primary's tool is unavailable.
type fallbackParser struct {
	primary   *PandocParser
	secondary Parser
}

func (p *fallbackParser) SupportedFormats() []string { return p.primary.SupportedFormats() }

func (p *fallbackParser) Parse(ctx context.Context, path, mediaDir string) (*ParseResult, error) {
	res, err := p.primary.Parse(ctx, path, mediaDir)
	if errors.Is(err, ErrPandocNotFound) {
		slog.Info("pandoc not found, using native docx reader", "path", path)
		return p.secondary.Parse(ctx, path, mediaDir)
	}
	return res, err
}
