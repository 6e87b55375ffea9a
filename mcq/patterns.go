package mcq

import (
	"log/slog"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single pattern evaluation. Block texts are short, so
// hitting it means a pathological input rather than a slow one.
const matchTimeout = 2 * time.Second

// imageDirective matches a LaTeX inclusion directive; group 1 is the path.
const imageDirective = `\\includegraphics(?:\[[^\]]*\])?\{([^}]*)\}`

// notAnnotation keeps the loose bracket heuristics off hint and explanation
// annotations, whose free text often mentions chapters or boards.
const notAnnotation = `(?!\s*(?:Hint|Explaination)\s*:)`

// optionStop is the lookahead that ends an option's text: answer, hint and
// explanation markers or the end of the block. The next option letter is
// prepended per pattern.
const optionStop = `উত্তর[:ঃ]|(?<![A-Za-z])[Aa]nswer[:ঃ]|\[Hint:|\[Explaination:|$`

var (
	rePattern2Cue = compile(`নিচের\s+কোনটি\s+সঠিক\s*\?`, regexp2.None)
	reImage       = compile(imageDirective, regexp2.None)

	reTopicNative  = compile(`\[\s*টপিক\s*[:ঃ]\s*([^\]]*?)\s*\]`, regexp2.None)
	reTopicEnglish = compile(`\[\s*Topic\s*:\s*([^\]]*?)\s*\]`, regexp2.IgnoreCase)
	reTopicLoose   = compile(`\[`+notAnnotation+`([^\[\]]*?(?:Topic|Subject|Chapter)[^\[\]]*?)\]`, regexp2.IgnoreCase)

	reDifficulty = compile(`\[`+notAnnotation+`\s*(Easy|Medium|Hard|[^\[\]]*?Difficulty[^\[\]]*?)\s*\]`, regexp2.IgnoreCase)
	reBoard      = compile(`\[`+notAnnotation+`([^\[\]]*?(?:Board|Institute|Reference)[^\[\]]*?)\]`, regexp2.IgnoreCase)

	reHint        = annotation("Hint")
	reExplanation = annotation("Explaination")

	reAnswerNative  = compile(`উত্তর[:ঃ]\s*(.*?)(?=\s+\[|$)`, regexp2.Singleline)
	reAnswerEnglish = compile(`(?<![A-Za-z])[Aa]nswer[:ঃ]\s*(.*?)(?=\s+\[|$)`, regexp2.Singleline)

	optionStrict [4]*regexp2.Regexp
	optionLoose  [4]*regexp2.Regexp
)

func init() {
	for i, l := range Letters {
		optionStrict[i] = compile(`(?<!\S)`+l+`\.\s+(.*?)(?=\s+[ক-ঘ]\.|`+optionStop+`)`, regexp2.Singleline)
		optionLoose[i] = compile(`(?<!\S)`+l+`[)।\s]\s*(.*?)(?=\s+[ক-ঘ][)।\s]|`+optionStop+`)`, regexp2.Singleline)
	}
}

func compile(expr string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, opts)
	re.MatchTimeout = matchTimeout
	return re
}

// annotation builds the pattern for a keyed bracket annotation such as
// [Hint: ...]. The body may contain inclusion directives, whose optional
// [..] argument would otherwise end the annotation early. An unterminated
// annotation runs to the end of the block.
func annotation(keyword string) *regexp2.Regexp {
	return compile(`\[`+keyword+`:\s*((?:`+imageDirective+`|[^\]])*?)\s*(?:\]|$)`, regexp2.None)
}

// span is a matched region in rune offsets of the text it was found in.
type span struct {
	start, end int
}

// match is one pattern hit: the whole-match region and the first group.
type match struct {
	span
	group string
}

// findAll returns every non-overlapping match of re in text. A pattern that
// times out is treated as matching nothing from that point on.
func findAll(re *regexp2.Regexp, text string) []match {
	var out []match
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		g := ""
		if grp := m.GroupByNumber(1); grp != nil {
			g = grp.String()
		}
		out = append(out, match{span: span{m.Index, m.Index + m.Length}, group: g})
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		slog.Warn("extract: pattern evaluation aborted", "pattern", re.String(), "error", err)
	}
	return out
}

// findFirst returns the first match of re in text.
func findFirst(re *regexp2.Regexp, text string) (match, bool) {
	m, err := re.FindStringMatch(text)
	if err != nil {
		slog.Warn("extract: pattern evaluation aborted", "pattern", re.String(), "error", err)
		return match{}, false
	}
	if m == nil {
		return match{}, false
	}
	g := ""
	if grp := m.GroupByNumber(1); grp != nil {
		g = grp.String()
	}
	return match{span: span{m.Index, m.Index + m.Length}, group: g}, true
}
