package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	formats := []struct {
		converter  string
		format     string
		wantParser string
	}{
		{ConverterNative, "docx", "*parser.DOCXParser"},
		{ConverterPandoc, "docx", "*parser.PandocParser"},
		{ConverterAuto, "docx", "*parser.fallbackParser"},
		{ConverterAuto, "pdf", "*parser.PDFParser"},
		{ConverterAuto, "tex", "*parser.TextParser"},
		{ConverterAuto, "txt", "*parser.TextParser"},
		{ConverterAuto, "doc", "*parser.LegacyParser"},
	}

	for _, tt := range formats {
		t.Run(tt.converter+"/"+tt.format, func(t *testing.T) {
			reg := NewRegistry(tt.converter, "")
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			if got := typeName(p); got != tt.wantParser {
				t.Errorf("Get(%q) = %s, want %s", tt.format, got, tt.wantParser)
			}
		})
	}
}

func typeName(p Parser) string {
	switch p.(type) {
	case *DOCXParser:
		return "*parser.DOCXParser"
	case *PandocParser:
		return "*parser.PandocParser"
	case *fallbackParser:
		return "*parser.fallbackParser"
	case *PDFParser:
		return "*parser.PDFParser"
	case *TextParser:
		return "*parser.TextParser"
	case *LegacyParser:
		return "*parser.LegacyParser"
	default:
		return "unknown"
	}
}

func TestRegistryFormats(t *testing.T) {
	want := []string{"doc", "docx", "md", "pdf", "tex", "txt"}
	for _, converter := range []string{ConverterAuto, ConverterPandoc, ConverterNative} {
		got := NewRegistry(converter, "").Formats()
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s: formats = %v, want %v", converter, got, want)
		}
	}
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	reg := NewRegistry(ConverterAuto, "")
	if _, err := reg.Get("pptx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	p, format, err := reg.ForPath("/tmp/Old Exam.DOC")
	if err != nil {
		t.Fatalf("ForPath: %v", err)
	}
	if format != "doc" {
		t.Errorf("format = %q, want doc", format)
	}
	if _, err := p.Parse(context.Background(), "x.doc", t.TempDir()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("legacy parse: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"exam.docx", "docx"},
		{"/a/b/Exam.DOCX", "docx"},
		{"notes.tex", "tex"},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := FormatOf(tt.path); got != tt.want {
			t.Errorf("FormatOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPandocNotFound(t *testing.T) {
	p := &PandocParser{Bin: "pandoc-does-not-exist-mcqsheet"}
	if p.Available() {
		t.Fatal("bogus pandoc binary reported as available")
	}
	_, err := p.Parse(context.Background(), "exam.docx", t.TempDir())
	if !errors.Is(err, ErrPandocNotFound) {
		t.Errorf("expected ErrPandocNotFound, got %v", err)
	}
}

func TestAutoFallsBackToNative(t *testing.T) {
	docxPath := createTestDOCX(t, mcqBody, nil, "")
	reg := NewRegistry(ConverterAuto, "pandoc-does-not-exist-mcqsheet")

	p, err := reg.Get("docx")
	if err != nil {
		t.Fatal(err)
	}
	result, err := p.Parse(context.Background(), docxPath, t.TempDir())
	if err != nil {
		t.Fatalf("parsing with fallback: %v", err)
	}
	if result.Method != "native" {
		t.Errorf("expected native method, got %s", result.Method)
	}
}

func TestTextParser(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "exam.tex")
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(full, []byte("1. Q ক. a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &TextParser{}
	result, err := p.Parse(context.Background(), full, dir)
	if err != nil {
		t.Fatalf("parsing text: %v", err)
	}
	if result.Markup != "1. Q ক. a\n" || result.Method != "text" {
		t.Errorf("unexpected result: %+v", result)
	}
	if _, err := p.Parse(context.Background(), empty, dir); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestExtractTables(t *testing.T) {
	doc := `<html><body><p>intro</p>
<table><tr><td>outer<table><tr><td>inner</td></tr></table></td></tr></table>
<table id="second"><tr><th>h</th></tr></table>
</body></html>`

	tables, err := ExtractTables(doc)
	if err != nil {
		t.Fatalf("ExtractTables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 top-level tables, got %d", len(tables))
	}
	if !strings.Contains(tables[0], "inner") {
		t.Errorf("nested table content lost: %s", tables[0])
	}
	if !strings.Contains(tables[1], `class="extracted-table"`) {
		t.Errorf("missing class attribute: %s", tables[1])
	}
}

func TestTablesDocument(t *testing.T) {
	out := TablesDocument("exam <1>.docx", []string{"<table></table>", "<table></table>"})
	for _, want := range []string{"<h2>Table 1</h2>", "<h2>Table 2</h2>", "exam &lt;1&gt;.docx", "border-collapse"} {
		if !strings.Contains(out, want) {
			t.Errorf("tables document missing %q", want)
		}
	}
}
