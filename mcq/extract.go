package mcq

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// ImageEncoder turns an image file into an inline data URI. It returns ""
// when the file cannot be read or encoded.
type ImageEncoder interface {
	DataURI(path string) string
}

// Normalizer rewrites the notation inside a text field.
type Normalizer interface {
	Normalize(s string) string
}

// Outcome says what became of one block.
type Outcome int

const (
	OutcomeRecord Outcome = iota
	OutcomeEmptyBlock
	OutcomeNoOptions
	OutcomeEmptyQuestion
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecord:
		return "record"
	case OutcomeEmptyBlock:
		return "empty_block"
	case OutcomeNoOptions:
		return "no_options"
	case OutcomeEmptyQuestion:
		return "empty_question"
	default:
		return "unknown"
	}
}

// Extraction is the result of running the field pipeline over one block.
// Record is only meaningful when Outcome is OutcomeRecord.
type Extraction struct {
	Record         Record
	Outcome        Outcome
	ImagesEmbedded int
	ImagesMissing  int
}

// DocumentResult holds the records of one document in document order.
type DocumentResult struct {
	Records  []Record
	Stats    Stats
	Strategy string
}

// Extractor turns block text into records. It holds no per-document state,
// so one extractor may be reused for every document of a run.
type Extractor struct {
	mediaDir  string
	images    ImageEncoder
	norm      Normalizer
	segmenter *Segmenter
}

// NewExtractor creates an extractor resolving image references against
// mediaDir. A nil encoder leaves every image slot empty; a nil normalizer
// leaves field text as extracted.
func NewExtractor(mediaDir string, images ImageEncoder, norm Normalizer) *Extractor {
	return &Extractor{
		mediaDir:  mediaDir,
		images:    images,
		norm:      norm,
		segmenter: NewSegmenter(),
	}
}

// ExtractDocument segments flattened text and extracts every block.
func (e *Extractor) ExtractDocument(text string) DocumentResult {
	seg := e.segmenter.Segment(text)
	res := DocumentResult{Strategy: seg.Strategy}
	res.Stats.Blocks = len(seg.Blocks)

	for _, b := range seg.Blocks {
		x := e.ExtractBlock(b)
		res.Stats.ImagesEmbedded += x.ImagesEmbedded
		res.Stats.ImagesMissing += x.ImagesMissing
		switch x.Outcome {
		case OutcomeRecord:
			res.Records = append(res.Records, x.Record)
			if x.Record.IsPattern2 {
				res.Stats.Pattern2++
			}
		case OutcomeNoOptions:
			res.Stats.NoOptions++
		case OutcomeEmptyQuestion:
			res.Stats.EmptyQuestion++
		}
	}
	res.Stats.Records = len(res.Records)

	slog.Debug("extract: document done",
		"strategy", seg.Strategy,
		"blocks", res.Stats.Blocks,
		"records", res.Stats.Records,
		"discarded", res.Stats.Discarded())
	return res
}

// Extract runs the pipeline over one block and reports whether it produced
// a record.
func (e *Extractor) Extract(b Block) (Record, bool) {
	x := e.ExtractBlock(b)
	return x.Record, x.Outcome == OutcomeRecord
}

// ExtractBlock runs every stage over the block text, strips the matched
// spans from a working copy and builds the question from what remains.
func (e *Extractor) ExtractBlock(b Block) Extraction {
	if strings.TrimSpace(b.Text) == "" {
		return Extraction{Outcome: OutcomeEmptyBlock}
	}

	x := &extraction{text: b.Text, e: e, seen: make(map[string]string)}
	x.rec.Serial = b.Serial

	var spans []span
	for _, st := range stages {
		spans = append(spans, st.apply(x)...)
	}

	if x.options == 0 {
		slog.Debug("extract: no options, skipping", "serial", b.Serial)
		return x.result(OutcomeNoOptions)
	}

	x.rec.QuestionImage = x.embedFirst(x.text)
	rest := stripImages(strip(b.Text, spans))
	if x.rec.IsPattern2 {
		rest = tidyStatements(rest)
	} else {
		rest = strings.Join(strings.Fields(rest), " ")
	}

	x.rec.Question = e.normalize(rest)
	if strings.TrimSpace(x.rec.Question) == "" {
		slog.Debug("extract: empty question, skipping", "serial", b.Serial)
		return x.result(OutcomeEmptyQuestion)
	}

	x.rec.Topic = e.normalize(x.rec.Topic)
	x.rec.Board = e.normalize(x.rec.Board)
	x.rec.Hint = e.normalize(x.rec.Hint)
	x.rec.Explanation = e.normalize(x.rec.Explanation)
	for i := range x.rec.Options {
		x.rec.Options[i] = e.normalize(x.rec.Options[i])
	}
	x.rec.Answer = CanonicalizeAnswer(x.rec.Answer)

	return x.result(OutcomeRecord)
}

func (e *Extractor) normalize(s string) string {
	if e.norm == nil || s == "" {
		return s
	}
	return e.norm.Normalize(s)
}

// resolve maps an inclusion path to a file in the media directory. Only the
// basename of the reference is trusted.
func (e *Extractor) resolve(ref string) (string, bool) {
	if e.mediaDir == "" {
		return "", false
	}
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = ref[i+1:]
	}
	if ref == "" || ref == "." || ref == ".." {
		return "", false
	}
	p := filepath.Join(e.mediaDir, ref)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// extraction is the working state of one block. text never changes; stages
// record what they found and return the spans to strip from the question.
type extraction struct {
	e        *Extractor
	text     string
	rec      Record
	options  int
	embedded int
	missing  int
	// seen holds the data URI already produced for a reference, so an image
	// shared by the question and one of its fields is counted once.
	seen map[string]string
}

func (x *extraction) result(o Outcome) Extraction {
	out := Extraction{Outcome: o, ImagesEmbedded: x.embedded, ImagesMissing: x.missing}
	if o == OutcomeRecord {
		out.Record = x.rec
	}
	return out
}

// embedFirst encodes the first image reference in s that resolves to a file.
func (x *extraction) embedFirst(s string) string {
	refs := findAll(reImage, s)
	if len(refs) == 0 {
		return ""
	}
	for _, ref := range refs {
		p, ok := x.e.resolve(ref.group)
		if !ok {
			continue
		}
		if uri, ok := x.seen[p]; ok {
			return uri
		}
		var uri string
		if x.e.images != nil {
			uri = x.e.images.DataURI(p)
		}
		if uri == "" {
			x.missing++
			slog.Debug("extract: image not encodable", "serial", x.rec.Serial, "path", p)
		} else {
			x.embedded++
		}
		x.seen[p] = uri
		return uri
	}
	if _, ok := x.seen[refs[0].group]; ok {
		return ""
	}
	x.seen[refs[0].group] = ""
	x.missing++
	slog.Debug("extract: image not found", "serial", x.rec.Serial, "ref", refs[0].group)
	return ""
}

// field splits a captured slice into its text and its own image.
func (x *extraction) field(raw string) (text, image string) {
	image = x.embedFirst(raw)
	return strings.TrimSpace(stripImages(raw)), image
}

// stage is one (detect, extract, strip) step of the pipeline.
type stage struct {
	name  string
	apply func(x *extraction) []span
}

var stages = []stage{
	{"pattern2", detectPattern2},
	{"topic", extractTopic},
	{"difficulty", extractDifficulty},
	{"board", extractBoard},
	{"hint", extractHint},
	{"explanation", extractExplanation},
	{"options", extractOptions},
	{"answer", extractAnswer},
}

func detectPattern2(x *extraction) []span {
	ms := findAll(rePattern2Cue, x.text)
	x.rec.IsPattern2 = len(ms) > 0
	return spansOf(ms)
}

func extractTopic(x *extraction) []span {
	var spans []span
	for _, re := range []*regexp2.Regexp{reTopicNative, reTopicEnglish, reTopicLoose} {
		ms := findAll(re, x.text)
		for _, m := range ms {
			if x.rec.Topic == "" {
				x.rec.Topic = strings.TrimSpace(m.group)
			}
		}
		spans = append(spans, spansOf(ms)...)
	}
	return spans
}

func extractDifficulty(x *extraction) []span {
	ms := findAll(reDifficulty, x.text)
	if len(ms) > 0 {
		x.rec.Difficulty = strings.TrimSpace(ms[0].group)
	}
	return spansOf(ms)
}

func extractBoard(x *extraction) []span {
	ms := findAll(reBoard, x.text)
	if len(ms) > 0 {
		x.rec.Board = strings.TrimSpace(ms[0].group)
	}
	return spansOf(ms)
}

func extractHint(x *extraction) []span {
	ms := findAll(reHint, x.text)
	if len(ms) > 0 {
		x.rec.Hint, x.rec.HintImage = x.field(ms[0].group)
	}
	return spansOf(ms)
}

func extractExplanation(x *extraction) []span {
	ms := findAll(reExplanation, x.text)
	if len(ms) > 0 {
		x.rec.Explanation, x.rec.ExplanationImage = x.field(ms[0].group)
	}
	return spansOf(ms)
}

func extractOptions(x *extraction) []span {
	var spans []span
	for i, l := range Letters {
		m, ok := findFirst(optionStrict[i], x.text)
		if !ok || strings.TrimSpace(m.group) == "" {
			m, ok = findFirst(optionLoose[i], x.text)
		}
		if !ok || strings.TrimSpace(m.group) == "" {
			continue
		}
		x.options++
		x.rec.Options[i], x.rec.OptionImages[i] = x.field(m.group)
		spans = append(spans, m.span)
		slog.Debug("extract: option found", "serial", x.rec.Serial, "letter", l)
	}
	return spans
}

func extractAnswer(x *extraction) []span {
	native := findAll(reAnswerNative, x.text)
	english := findAll(reAnswerEnglish, x.text)
	switch {
	case len(native) > 0:
		x.rec.Answer = strings.TrimSpace(native[0].group)
	case len(english) > 0:
		x.rec.Answer = strings.TrimSpace(english[0].group)
	default:
		slog.Debug("extract: no answer", "serial", x.rec.Serial)
	}
	return append(spansOf(native), spansOf(english)...)
}

func spansOf(ms []match) []span {
	out := make([]span, len(ms))
	for i, m := range ms {
		out[i] = m.span
	}
	return out
}

// strip removes every span from text. Spans are rune offsets and may
// overlap; each removed run is replaced by one space so the words on
// either side stay apart.
func strip(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)
	cut := make([]bool, len(runes))
	for _, s := range spans {
		for i := max(s.start, 0); i < s.end && i < len(runes); i++ {
			cut[i] = true
		}
	}
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		if !cut[i] {
			b.WriteRune(r)
		} else if i == 0 || !cut[i-1] {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func stripImages(s string) string {
	out, err := reImage.Replace(s, "", -1, -1)
	if err != nil {
		return s
	}
	return out
}

var (
	reStatement  = regexp.MustCompile(`(?:^|\s+)((?:iv|i{1,3})\.\s)`)
	reSpaceRun   = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// tidyStatements lays out a statement-combination question: each enumerated
// statement starts its own line, space runs collapse and at most one blank
// line separates paragraphs.
func tidyStatements(s string) string {
	s = reStatement.ReplaceAllString(s, "\n$1")
	s = reSpaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
