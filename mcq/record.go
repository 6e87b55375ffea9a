package mcq

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Letters are the native option letters in slot order.
var Letters = [4]string{"ক", "খ", "গ", "ঘ"}

// Codes are the canonical answer codes, parallel to Letters.
var Codes = [4]string{"A", "B", "C", "D"}

// Block is one segment of document text: a serial label and the raw text
// that follows it up to the next serial.
type Block struct {
	Serial string
	Text   string
}

// Record is one extracted multiple-choice question.
type Record struct {
	Serial           string    `json:"serial"`
	Question         string    `json:"question"`
	QuestionImage    string    `json:"question_image"`
	Topic            string    `json:"topic"`
	Difficulty       string    `json:"difficulty"`
	Board            string    `json:"board"`
	Options          [4]string `json:"options"`       // indexed like Letters
	OptionImages     [4]string `json:"option_images"` // indexed like Letters
	Answer           string    `json:"answer"`
	Hint             string    `json:"hint"`
	HintImage        string    `json:"hint_image"`
	Explanation      string    `json:"explanation"`
	ExplanationImage string    `json:"explanation_image"`
	IsPattern2       bool      `json:"is_pattern2"`
}

// Option returns the option text stored under a native letter.
func (r *Record) Option(letter string) (string, bool) {
	for i, l := range Letters {
		if l == letter {
			return r.Options[i], true
		}
	}
	return "", false
}

// HasImages reports whether any image slot of the record is populated.
func (r *Record) HasImages() bool {
	if r.QuestionImage != "" || r.HintImage != "" || r.ExplanationImage != "" {
		return true
	}
	for _, img := range r.OptionImages {
		if img != "" {
			return true
		}
	}
	return false
}

// Stats counts what happened to the blocks of one document.
type Stats struct {
	Blocks         int `json:"blocks"`
	Records        int `json:"records"`
	NoOptions      int `json:"no_options"`
	EmptyQuestion  int `json:"empty_question"`
	Pattern2       int `json:"pattern2"`
	ImagesEmbedded int `json:"images_embedded"`
	ImagesMissing  int `json:"images_missing"`
}

// Discarded is the number of blocks that produced no record.
func (s Stats) Discarded() int {
	return s.NoOptions + s.EmptyQuestion
}

// bracketEscapes undoes the way LaTeX writers escape square brackets so
// annotations reach the extractor as plain [...] notation.
var bracketEscapes = strings.NewReplacer(
	`\textbf{{[}}`, "[",
	`\textbf{{]}}`, "]",
	`\textbf{:}`, ":",
	`{\[}`, "[",
	`{\]}`, "]",
	`{[}`, "[",
	`{]}`, "]",
)

// Flatten turns converter markup into the single logical stream the
// segmenter works on: NFC-normalized, bracket escapes undone, every
// non-blank line trimmed and joined with one space.
func Flatten(markup string) string {
	markup = norm.NFC.String(markup)
	markup = strings.ReplaceAll(markup, "\r\n", "\n")
	markup = bracketEscapes.Replace(markup)

	lines := strings.Split(markup, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
