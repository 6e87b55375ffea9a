package sheet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/mcqsheet/mcq"
)

// ErrNotAnExport is returned when a workbook lacks the export header.
var ErrNotAnExport = errors.New("workbook is not an MCQ export")

// Table is an exported sheet read back: one map per data row keyed by
// column title.
type Table struct {
	Sheet string
	Rows  []map[string]string
}

// Read opens a workbook and returns the rows of its MCQ sheet. The sheet
// named MCQs is preferred, otherwise the first sheet whose header carries
// the Question and Serial columns is used.
func Read(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if i := slices.Index(sheets, SheetName); i > 0 {
		sheets[0], sheets[i] = sheets[i], sheets[0]
	}

	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		header := rows[0]
		if !slices.Contains(header, "Question") || !slices.Contains(header, "Serial") {
			continue
		}

		t := &Table{Sheet: name}
		for _, row := range rows[1:] {
			m := make(map[string]string, len(header))
			empty := true
			for i, title := range header {
				if i < len(row) {
					m[title] = row[i]
					if row[i] != "" {
						empty = false
					}
				} else {
					m[title] = ""
				}
			}
			if !empty {
				t.Rows = append(t.Rows, m)
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("%s: %w", path, ErrNotAnExport)
}

// Records converts the rows back into records. Class, Subject and Chapter
// of the first row are returned as the run metadata.
func (t *Table) Records() ([]mcq.Record, Metadata) {
	var meta Metadata
	out := make([]mcq.Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		if i == 0 {
			meta = Metadata{Class: row["Class"], Subject: row["Subject"], Chapter: row["Chapter"]}
		}
		out = append(out, mcq.Record{
			Serial:        row["Serial"],
			Question:      Unguard(row["Question"]),
			QuestionImage: row["Ques_img"],
			Topic:         row["Topic"],
			Difficulty:    row["Difficulty_level"],
			Board:         row["Reference_Board/Institute"],
			Options: [4]string{
				Unguard(row["OptionA"]),
				Unguard(row["OptionB"]),
				Unguard(row["OptionC"]),
				Unguard(row["OptionD"]),
			},
			OptionImages: [4]string{
				row["OptionA_IMG"], row["OptionB_IMG"], row["OptionC_IMG"], row["OptionD_IMG"],
			},
			Answer:           Unguard(row["Answer"]),
			Explanation:      Unguard(row["Explaination"]),
			ExplanationImage: row["Explaination_IMG"],
			Hint:             Unguard(row["Hint"]),
			HintImage:        row["Hint_img"],
		})
	}
	return out, meta
}
