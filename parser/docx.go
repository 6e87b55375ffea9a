package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
)

const (
	nsWord = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsMath = "http://schemas.openxmlformats.org/officeDocument/2006/math"
)

// DOCXParser reads .docx archives directly. It produces the same markup
// shape as the pandoc converter: one line per paragraph, inclusion
// directives for pictures and \( \) around Office math.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path, mediaDir string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	// Build file index for quick lookup
	fileIndex := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileIndex[f.Name] = f
	}

	docFile := fileIndex["word/document.xml"]
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}
	data, err := readZipFile(docFile)
	if err != nil {
		return nil, fmt.Errorf("reading document.xml: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	media, err := ExtractMedia(path, mediaDir)
	if err != nil {
		slog.Warn("docx: media extraction failed", "path", path, "error", err)
	}

	rels := parseDocxRels(fileIndex)
	markup, tables, err := renderDocx(data, rels)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}
	if strings.TrimSpace(markup) == "" {
		return nil, ErrEmptyDocument
	}

	return &ParseResult{
		Markup: markup,
		Tables: tables,
		Media:  media,
		Method: "native",
		Metadata: map[string]string{
			"tables": strconv.Itoa(len(tables)),
			"media":  strconv.Itoa(len(media)),
		},
	}, nil
}

// parseDocxRels reads word/_rels/document.xml.rels and returns a map of rId -> target path.
func parseDocxRels(fileIndex map[string]*zip.File) map[string]string {
	relsFile := fileIndex["word/_rels/document.xml.rels"]
	if relsFile == nil {
		return nil
	}
	data, err := readZipFile(relsFile)
	if err != nil {
		return nil
	}

	var rels docxRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil
	}

	result := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		result[rel.ID] = rel.Target
	}
	return result
}

// docxRelationships represents the .rels XML structure.
type docxRelationships struct {
	XMLName xml.Name           `xml:"Relationships"`
	Rels    []docxRelationship `xml:"Relationship"`
}

type docxRelationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
	Type   string `xml:"Type,attr"`
}

// docxWriter accumulates markup while walking document.xml.
type docxWriter struct {
	rels   map[string]string
	out    strings.Builder
	math   int  // nesting depth of m:oMath
	inText bool // inside w:t or m:t

	tblDepth int
	rows     [][]string
	cell     strings.Builder
	inCell   bool
	tables   []string
}

func renderDocx(docXML []byte, rels map[string]string) (string, []string, error) {
	w := &docxWriter{rels: rels}
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText {
				w.text(string(t))
			}
		}
	}
	return w.out.String(), w.tables, nil
}

func (w *docxWriter) text(s string) {
	w.out.WriteString(s)
	if w.inCell {
		w.cell.WriteString(s)
	}
}

func (w *docxWriter) start(t xml.StartElement) {
	switch t.Name.Local {
	case "oMath":
		if t.Name.Space == nsMath {
			if w.math == 0 {
				w.out.WriteString(`\(`)
			}
			w.math++
		}
	case "t":
		w.inText = true
	case "tab":
		if t.Name.Space == nsWord {
			w.text(" ")
		}
	case "br", "cr":
		if t.Name.Space == nsWord {
			w.out.WriteString("\n")
		}
	case "blip", "imagedata":
		for _, attr := range t.Attr {
			if attr.Name.Local == "embed" || attr.Name.Local == "id" {
				w.image(attr.Value)
				break
			}
		}
	case "tbl":
		w.tblDepth++
		if w.tblDepth == 1 {
			w.rows = nil
		}
	case "tr":
		if w.tblDepth == 1 {
			w.rows = append(w.rows, nil)
		}
	case "tc":
		if w.tblDepth == 1 {
			w.inCell = true
			w.cell.Reset()
		}
	}
}

func (w *docxWriter) end(t xml.EndElement) {
	switch t.Name.Local {
	case "t":
		w.inText = false
	case "oMath":
		if t.Name.Space == nsMath {
			w.math--
			if w.math == 0 {
				w.out.WriteString(`\)`)
			}
		}
	case "p":
		if t.Name.Space == nsWord && w.math == 0 {
			w.out.WriteString("\n")
			if w.inCell {
				w.cell.WriteString(" ")
			}
		}
	case "tc":
		if w.tblDepth == 1 && len(w.rows) > 0 {
			last := len(w.rows) - 1
			w.rows[last] = append(w.rows[last], strings.TrimSpace(w.cell.String()))
			w.inCell = false
		}
	case "tbl":
		w.tblDepth--
		if w.tblDepth == 0 {
			w.tables = append(w.tables, tableHTML(w.rows))
		}
	}
}

func (w *docxWriter) image(relID string) {
	target, ok := w.rels[relID]
	if !ok {
		slog.Debug("docx: image relationship not found", "rId", relID)
		return
	}
	w.out.WriteString(` \includegraphics{media/` + path.Base(target) + `} `)
}

func tableHTML(rows [][]string) string {
	var b strings.Builder
	b.WriteString("<table>")
	for i, row := range rows {
		tag := "td"
		if i == 0 {
			tag = "th"
		}
		b.WriteString("<tr>")
		for _, c := range row {
			b.WriteString("<" + tag + ">" + html.EscapeString(c) + "</" + tag + ">")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
