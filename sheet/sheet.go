// Package sheet writes extracted MCQ records to a workbook and reads
// exported workbooks back.
package sheet

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/mcqsheet/mcq"
)

// SheetName is the worksheet every export writes to.
const SheetName = "MCQs"

// Columns is the fixed header of an export. Downstream importers depend on
// this exact order and spelling.
var Columns = []string{
	"QuestionID",
	"Serial",
	"Class",
	"Subject",
	"Chapter",
	"Topic",
	"Question",
	"Ques_img",
	"OptionA",
	"OptionA_IMG",
	"OptionB",
	"OptionB_IMG",
	"OptionC",
	"OptionC_IMG",
	"OptionD",
	"OptionD_IMG",
	"Answer",
	"Explaination",
	"Explaination_IMG",
	"Hint",
	"Hint_img",
	"Difficulty_level",
	"Reference_Board/Institute",
	"Reference",
}

const (
	maxColumnWidth   = 50
	imageColumnWidth = 30
	textNumFmt       = 49 // "@"
)

// 1-based column numbers.
var (
	wrapColumns  = map[int]bool{7: true, 9: true, 11: true, 13: true, 15: true, 18: true, 20: true}
	imageColumns = map[int]bool{8: true, 10: true, 12: true, 14: true, 16: true, 19: true, 21: true}
)

// Metadata is applied to every row of one export.
type Metadata struct {
	Class    string `json:"class" yaml:"class"`
	Subject  string `json:"subject" yaml:"subject"`
	Chapter  string `json:"chapter" yaml:"chapter"`
	IDPrefix string `json:"id_prefix" yaml:"id_prefix"`
}

func (m Metadata) prefix() string {
	if m.IDPrefix == "" {
		return "Q"
	}
	return m.IDPrefix
}

// Row renders one record in column order with the export passes applied.
func Row(rec mcq.Record, meta Metadata) []string {
	answer := mcq.StandardizeAnswer(rec.Answer, rec.Options)
	answer = GuardFormula(RepairLatex(EnsureDelimiters(answer)))

	text := func(s string) string { return GuardFormula(RepairLatex(s)) }

	return []string{
		meta.prefix() + rec.Serial,
		rec.Serial,
		meta.Class,
		meta.Subject,
		meta.Chapter,
		rec.Topic,
		text(rec.Question),
		rec.QuestionImage,
		text(rec.Options[0]),
		rec.OptionImages[0],
		text(rec.Options[1]),
		rec.OptionImages[1],
		text(rec.Options[2]),
		rec.OptionImages[2],
		text(rec.Options[3]),
		rec.OptionImages[3],
		answer,
		text(rec.Explanation),
		rec.ExplanationImage,
		text(rec.Hint),
		rec.HintImage,
		rec.Difficulty,
		rec.Board,
		"",
	}
}

type styles struct {
	header, wrap, text, wrapText int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, err
	}
	wrap := &excelize.Alignment{WrapText: true, Vertical: "top"}
	if s.wrap, err = f.NewStyle(&excelize.Style{Alignment: wrap}); err != nil {
		return s, err
	}
	if s.text, err = f.NewStyle(&excelize.Style{NumFmt: textNumFmt}); err != nil {
		return s, err
	}
	s.wrapText, err = f.NewStyle(&excelize.Style{NumFmt: textNumFmt, Alignment: wrap})
	return s, err
}

func (s styles) forCell(col int, value string) int {
	hasMath := strings.Contains(value, "$")
	switch {
	case wrapColumns[col] && hasMath:
		return s.wrapText
	case wrapColumns[col]:
		return s.wrap
	case hasMath:
		return s.text
	}
	return 0
}

// Build lays the records out on a new workbook. The caller owns the
// returned file and must close it.
func Build(records []mcq.Record, meta Metadata) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if err := fill(f, records, meta); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func fill(f *excelize.File, records []mcq.Record, meta Metadata) error {
	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("creating styles: %w", err)
	}

	widths := make([]int, len(Columns))
	for i, title := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(SheetName, cell, title); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, st.header); err != nil {
			return fmt.Errorf("styling header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(title)
	}

	for r, rec := range records {
		for i, value := range Row(rec, meta) {
			col := i + 1
			cell, _ := excelize.CoordinatesToCellName(col, r+2)
			if err := f.SetCellStr(SheetName, cell, value); err != nil {
				return fmt.Errorf("writing %s: %w", cell, err)
			}
			if id := st.forCell(col, value); id != 0 {
				if err := f.SetCellStyle(SheetName, cell, cell, id); err != nil {
					return fmt.Errorf("styling %s: %w", cell, err)
				}
			}
			if n := utf8.RuneCountInString(value); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i := range Columns {
		col := i + 1
		name, _ := excelize.ColumnNumberToName(col)
		if err := f.SetColWidth(SheetName, name, name, ColumnWidth(col, widths[i])); err != nil {
			return fmt.Errorf("sizing column %s: %w", name, err)
		}
	}
	return nil
}

// ColumnWidth is the display width for a 1-based column whose longest value
// has maxLen characters.
func ColumnWidth(col, maxLen int) float64 {
	if imageColumns[col] {
		return imageColumnWidth
	}
	if maxLen+2 > maxColumnWidth {
		return maxColumnWidth
	}
	return float64(maxLen + 2)
}

// Write saves the records as a workbook at path.
func Write(path string, records []mcq.Record, meta Metadata) error {
	f, err := Build(records, meta)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	slog.Debug("sheet: workbook saved", "path", path, "rows", len(records))
	return nil
}

// WriteTo streams the workbook to w.
func WriteTo(w io.Writer, records []mcq.Record, meta Metadata) error {
	f, err := Build(records, meta)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
