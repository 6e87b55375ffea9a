package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PandocParser shells out to pandoc for the LaTeX markup and, separately,
// an HTML rendering used only to collect tables.
type PandocParser struct {
	Bin string // pandoc executable; "pandoc" when empty
}

func (p *PandocParser) SupportedFormats() []string { return []string{"docx"} }

func (p *PandocParser) bin() string {
	if p.Bin == "" {
		return "pandoc"
	}
	return p.Bin
}

// Available reports whether the pandoc executable can be found.
func (p *PandocParser) Available() bool {
	_, err := exec.LookPath(p.bin())
	return err == nil
}

func (p *PandocParser) Parse(ctx context.Context, path, mediaDir string) (*ParseResult, error) {
	bin, err := exec.LookPath(p.bin())
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrPandocNotFound
		}
		return nil, fmt.Errorf("locating pandoc: %w", err)
	}

	media, err := ExtractMedia(path, mediaDir)
	if err != nil {
		slog.Warn("pandoc: media extraction failed", "path", path, "error", err)
	}

	work, err := os.MkdirTemp("", "mcqsheet-pandoc-*")
	if err != nil {
		return nil, fmt.Errorf("creating pandoc workspace: %w", err)
	}
	defer os.RemoveAll(work)

	texPath := filepath.Join(work, "converted.tex")
	if err := runPandoc(ctx, bin, path, texPath, "latex"); err != nil {
		return nil, err
	}
	tex, err := os.ReadFile(texPath)
	if err != nil {
		return nil, fmt.Errorf("reading pandoc output: %w", err)
	}
	if len(bytes.TrimSpace(tex)) == 0 {
		return nil, ErrEmptyDocument
	}

	var tables []string
	htmlPath := filepath.Join(work, "converted.html")
	if err := runPandoc(ctx, bin, path, htmlPath, "html"); err != nil {
		slog.Warn("pandoc: html rendering failed, tables skipped", "path", path, "error", err)
	} else if data, err := os.ReadFile(htmlPath); err == nil {
		tables, err = ExtractTables(string(data))
		if err != nil {
			slog.Warn("pandoc: table extraction failed", "path", path, "error", err)
		}
	}

	return &ParseResult{
		Markup: string(tex),
		Tables: tables,
		Media:  media,
		Method: "pandoc",
		Metadata: map[string]string{
			"tables": strconv.Itoa(len(tables)),
			"media":  strconv.Itoa(len(media)),
		},
	}, nil
}

func runPandoc(ctx context.Context, bin, src, dst, to string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, src, "-t", to, "-o", dst)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("pandoc -t %s: %w", to, err)
		}
		return fmt.Errorf("pandoc -t %s: %w: %s", to, err, msg)
	}
	return nil
}
