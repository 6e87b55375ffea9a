package mcq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubEncoder returns a fake data URI naming the file it was asked for.
type stubEncoder struct {
	calls []string
}

func (s *stubEncoder) DataURI(path string) string {
	s.calls = append(s.calls, path)
	return "data:image/png;base64," + filepath.Base(path)
}

// wrapNormalizer marks every value it touches.
type wrapNormalizer struct{}

func (wrapNormalizer) Normalize(s string) string { return "<" + s + ">" }

func writeMedia(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("img"), 0o644); err != nil {
			t.Fatalf("writing media %s: %v", n, err)
		}
	}
}

func TestExtractPattern1(t *testing.T) {
	e := NewExtractor("", nil, nil)
	res := e.ExtractDocument("1. What is 2+2? ক. 3 খ. 4 গ. 5 ঘ. 6 Answer: খ")

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.Serial != "1" {
		t.Errorf("serial = %q, want 1", rec.Serial)
	}
	if rec.Question != "What is 2+2?" {
		t.Errorf("question = %q", rec.Question)
	}
	want := [4]string{"3", "4", "5", "6"}
	if rec.Options != want {
		t.Errorf("options = %q, want %q", rec.Options, want)
	}
	if rec.Answer != "B" {
		t.Errorf("answer = %q, want B", rec.Answer)
	}
	if rec.IsPattern2 {
		t.Error("expected pattern 1")
	}
}

func TestExtractMissingOptions(t *testing.T) {
	e := NewExtractor("", nil, nil)
	res := e.ExtractDocument("2. A question with no options at all Answer: A")

	if len(res.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(res.Records))
	}
	if res.Stats.NoOptions != 1 {
		t.Errorf("NoOptions = %d, want 1", res.Stats.NoOptions)
	}
	if res.Stats.Discarded() != 1 {
		t.Errorf("Discarded = %d, want 1", res.Stats.Discarded())
	}
}

func TestExtractPattern2(t *testing.T) {
	text := "3. Consider the statements: i. Water boils at 100°C ii. Ice floats iii. Salt dissolves " +
		"নিচের কোনটি সঠিক? ক. i ও ii খ. i ও iii গ. ii ও iii ঘ. i, ii ও iii উত্তর: ঘ"

	e := NewExtractor("", nil, nil)
	rec, ok := e.Extract(Block{Serial: "3", Text: strings.TrimPrefix(text, "3. ")})
	if !ok {
		t.Fatal("expected a record")
	}
	if !rec.IsPattern2 {
		t.Error("expected IsPattern2")
	}
	if strings.Contains(rec.Question, "নিচের") {
		t.Errorf("cue phrase left in question: %q", rec.Question)
	}
	want := "Consider the statements:\ni. Water boils at 100°C\nii. Ice floats\niii. Salt dissolves"
	if rec.Question != want {
		t.Errorf("question = %q, want %q", rec.Question, want)
	}
	if rec.Options[3] != "i, ii ও iii" {
		t.Errorf("option ঘ = %q", rec.Options[3])
	}
	if rec.Answer != "D" {
		t.Errorf("answer = %q, want D", rec.Answer)
	}
}

func TestExtractImageFallback(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "image1.png")
	enc := &stubEncoder{}

	text := `Identify the shape \includegraphics{media/image1.png} ` +
		`ক. Circle \includegraphics[width=1in]{media/missing.png} খ. Square গ. Triangle ঘ. Line উত্তর: ক`

	e := NewExtractor(dir, enc, nil)
	x := e.ExtractBlock(Block{Serial: "4", Text: text})
	if x.Outcome != OutcomeRecord {
		t.Fatalf("outcome = %s, want record", x.Outcome)
	}
	rec := x.Record
	if rec.Options[0] != "Circle" {
		t.Errorf("option ক = %q, want Circle", rec.Options[0])
	}
	if rec.OptionImages[0] != "" {
		t.Errorf("option ক image = %q, want empty", rec.OptionImages[0])
	}
	if rec.QuestionImage != "data:image/png;base64,image1.png" {
		t.Errorf("question image = %q", rec.QuestionImage)
	}
	if rec.Question != "Identify the shape" {
		t.Errorf("question = %q", rec.Question)
	}
	if x.ImagesEmbedded != 1 || x.ImagesMissing != 1 {
		t.Errorf("images embedded/missing = %d/%d, want 1/1", x.ImagesEmbedded, x.ImagesMissing)
	}
	if len(enc.calls) != 1 {
		t.Errorf("encoder called %d times, want 1", len(enc.calls))
	}
}

func TestExtractAnnotations(t *testing.T) {
	text := "Solve $x^2=4$ [টপিক: বীজগণিত] [Easy] [Dhaka Board-2019] " +
		"ক. 2 খ. -2 গ. ±2 ঘ. 4 উত্তরঃ গ [Hint: take the root] [Explaination: both signs work]"

	e := NewExtractor("", nil, nil)
	rec, ok := e.Extract(Block{Serial: "৫", Text: text})
	if !ok {
		t.Fatal("expected a record")
	}

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"question", rec.Question, "Solve $x^2=4$"},
		{"topic", rec.Topic, "বীজগণিত"},
		{"difficulty", rec.Difficulty, "Easy"},
		{"board", rec.Board, "Dhaka Board-2019"},
		{"hint", rec.Hint, "take the root"},
		{"explanation", rec.Explanation, "both signs work"},
		{"option ক", rec.Options[0], "2"},
		{"option খ", rec.Options[1], "-2"},
		{"option গ", rec.Options[2], "±2"},
		{"option ঘ", rec.Options[3], "4"},
		{"answer", rec.Answer, "C"},
		{"serial", rec.Serial, "৫"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
}

func TestExtractTopicFallbacks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english keyword", "Q [Topic: Motion] ক. a খ. b", "Motion"},
		{"loose keyword", "Q [Chapter 3 Vectors] ক. a খ. b", "Chapter 3 Vectors"},
		{"native wins over loose", "Q [Subject Physics] [টপিকঃ গতি] ক. a খ. b", "গতি"},
		{"hint mentioning chapter is not a topic", "Q [Hint: see Chapter 2] ক. a খ. b", ""},
	}

	e := NewExtractor("", nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := e.Extract(Block{Serial: "1", Text: tt.text})
			if !ok {
				t.Fatal("expected a record")
			}
			if rec.Topic != tt.want {
				t.Errorf("topic = %q, want %q", rec.Topic, tt.want)
			}
			if rec.Question != "Q" {
				t.Errorf("question = %q, want Q", rec.Question)
			}
		})
	}
}

func TestExtractLooseOptions(t *testing.T) {
	e := NewExtractor("", nil, nil)
	rec, ok := e.Extract(Block{Serial: "6", Text: "Pick one ক) alpha খ) beta গ) gamma ঘ) delta উত্তর: খ"})
	if !ok {
		t.Fatal("expected a record")
	}
	want := [4]string{"alpha", "beta", "gamma", "delta"}
	if rec.Options != want {
		t.Errorf("options = %q, want %q", rec.Options, want)
	}
	if rec.Question != "Pick one" {
		t.Errorf("question = %q", rec.Question)
	}
	if rec.Answer != "B" {
		t.Errorf("answer = %q, want B", rec.Answer)
	}
}

func TestExtractPartialOptions(t *testing.T) {
	e := NewExtractor("", nil, nil)
	rec, ok := e.Extract(Block{Serial: "7", Text: "True or false? ক. True খ. False"})
	if !ok {
		t.Fatal("a block with some options should be kept")
	}
	if rec.Options[2] != "" || rec.Options[3] != "" {
		t.Errorf("unused slots should be empty, got %q", rec.Options)
	}
	if rec.Answer != "" {
		t.Errorf("answer = %q, want empty", rec.Answer)
	}
}

func TestExtractEmptyQuestion(t *testing.T) {
	e := NewExtractor("", nil, nil)
	x := e.ExtractBlock(Block{Serial: "8", Text: "[Easy] ক. a খ. b"})
	if x.Outcome != OutcomeEmptyQuestion {
		t.Errorf("outcome = %s, want empty_question", x.Outcome)
	}
}

func TestExtractNormalizesFields(t *testing.T) {
	e := NewExtractor("", nil, wrapNormalizer{})
	rec, ok := e.Extract(Block{Serial: "1", Text: "What? [Hard] ক. 3 খ. 4 উত্তর: খ"})
	if !ok {
		t.Fatal("expected a record")
	}
	if rec.Question != "<What?>" {
		t.Errorf("question = %q", rec.Question)
	}
	if rec.Options[0] != "<3>" {
		t.Errorf("option ক = %q", rec.Options[0])
	}
	if rec.Options[2] != "" {
		t.Errorf("empty option should stay empty, got %q", rec.Options[2])
	}
	if rec.Answer != "B" {
		t.Errorf("answer = %q, want B", rec.Answer)
	}
	if rec.Difficulty != "Hard" {
		t.Errorf("difficulty = %q, want Hard", rec.Difficulty)
	}
}

func TestExtractHintImage(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "hint.png")

	e := NewExtractor(dir, &stubEncoder{}, nil)
	text := `Q ক. a খ. b উত্তর: ক [Hint: look \includegraphics[width=2in]{C:/docs/media/hint.png} here]`
	rec, ok := e.Extract(Block{Serial: "1", Text: text})
	if !ok {
		t.Fatal("expected a record")
	}
	if rec.HintImage != "data:image/png;base64,hint.png" {
		t.Errorf("hint image = %q", rec.HintImage)
	}
	if rec.Hint != "look  here" {
		t.Errorf("hint = %q", rec.Hint)
	}
	if rec.QuestionImage != rec.HintImage {
		t.Errorf("question image = %q, want the block's first image", rec.QuestionImage)
	}
	if rec.Answer != "A" {
		t.Errorf("answer = %q, want A", rec.Answer)
	}
}

func TestExtractQuestionImageFromWholeBlock(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "a.png", "b.png")

	tests := []struct {
		name      string
		text      string
		wantQImg  string
		wantOpt   [4]string
		wantOImgs [4]string
		embedded  int
	}{
		{
			name:      "image only inside an option",
			text:      `Which shape? ক. \includegraphics{media/a.png} Circle খ. Square উত্তর: ক`,
			wantQImg:  "data:image/png;base64,a.png",
			wantOpt:   [4]string{"Circle", "Square"},
			wantOImgs: [4]string{"data:image/png;base64,a.png"},
			embedded:  1,
		},
		{
			name:      "question image precedes option image",
			text:      `Pick \includegraphics{media/b.png} ক. \includegraphics{media/a.png} one খ. two উত্তর: খ`,
			wantQImg:  "data:image/png;base64,b.png",
			wantOpt:   [4]string{"one", "two"},
			wantOImgs: [4]string{"data:image/png;base64,a.png"},
			embedded:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &stubEncoder{}
			e := NewExtractor(dir, enc, nil)
			x := e.ExtractBlock(Block{Serial: "1", Text: tt.text})
			if x.Outcome != OutcomeRecord {
				t.Fatalf("outcome = %s, want record", x.Outcome)
			}
			rec := x.Record
			if rec.QuestionImage != tt.wantQImg {
				t.Errorf("question image = %q, want %q", rec.QuestionImage, tt.wantQImg)
			}
			if rec.Options != tt.wantOpt {
				t.Errorf("options = %q, want %q", rec.Options, tt.wantOpt)
			}
			if rec.OptionImages != tt.wantOImgs {
				t.Errorf("option images = %q, want %q", rec.OptionImages, tt.wantOImgs)
			}
			if strings.Contains(rec.Question, "includegraphics") {
				t.Errorf("reference left in question: %q", rec.Question)
			}
			if x.ImagesEmbedded != tt.embedded || len(enc.calls) != tt.embedded {
				t.Errorf("embedded = %d, encoder calls = %d, want %d",
					x.ImagesEmbedded, len(enc.calls), tt.embedded)
			}
		})
	}
}

func TestExtractDocumentStats(t *testing.T) {
	text := "Preamble text 1. First ক. a খ. b উত্তর: ক " +
		"2. No options here " +
		"3. Third নিচের কোনটি সঠিক? ক. i খ. ii উত্তর: খ"

	e := NewExtractor("", nil, nil)
	res := e.ExtractDocument(text)
	if res.Strategy != "ascii" {
		t.Errorf("strategy = %q, want ascii", res.Strategy)
	}
	want := Stats{Blocks: 3, Records: 2, NoOptions: 1, Pattern2: 1}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}
	if res.Records[0].Serial != "1" || res.Records[1].Serial != "3" {
		t.Errorf("records out of document order: %q, %q", res.Records[0].Serial, res.Records[1].Serial)
	}
}

func TestStrip(t *testing.T) {
	got := strip("abc def ghi", []span{{4, 7}, {5, 6}})
	if got != "abc   ghi" {
		t.Errorf("strip = %q", got)
	}
	if got := strip("কখগ", []span{{1, 2}}); got != "ক গ" {
		t.Errorf("strip multibyte = %q", got)
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten("line one\r\n\n  line two  \n{[}Easy{]} \\textbf{{[}}Hint\\textbf{:} x\\textbf{{]}}")
	want := "line one line two [Easy] [Hint: x]"
	if got != want {
		t.Errorf("Flatten = %q, want %q", got, want)
	}
}
