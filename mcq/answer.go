package mcq

import (
	"regexp"
	"strings"
	"unicode"
)

// answerSeparators may appear between letters of a combination answer
// ("ক, খ", "ক ও গ") and are ignored when mapping letters to codes.
const answerSeparators = ",&+/;।.)ও"

var reLeadingLetter = regexp.MustCompile(`^([কখগঘ])\s*[.)।]`)

// CanonicalizeAnswer maps an answer written with native option letters to
// the canonical codes. Every significant rune must be a letter for the
// mapping to apply; multi-letter answers concatenate their codes in the
// order written. An answer that opens with a labelled letter ("খ. ৪") maps
// that letter. Anything else is returned unchanged.
func CanonicalizeAnswer(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	allLetters := true
	for _, r := range raw {
		if unicode.IsSpace(r) || strings.ContainsRune(answerSeparators, r) {
			continue
		}
		code, ok := letterCode(string(r))
		if !ok {
			allLetters = false
			break
		}
		b.WriteString(code)
	}
	if allLetters && b.Len() > 0 {
		return b.String()
	}

	if m := reLeadingLetter.FindStringSubmatch(raw); m != nil {
		code, _ := letterCode(m[1])
		return code
	}
	return raw
}

// StandardizeAnswer is the export-side answer pass. A canonical code is kept,
// a single native letter is mapped, and an answer spelled out in full is
// matched against the option texts. Unresolvable answers are returned as is.
func StandardizeAnswer(raw string, options [4]string) string {
	ans := strings.TrimSpace(raw)
	if ans == "" {
		return ""
	}
	for _, c := range Codes {
		if ans == c {
			return ans
		}
	}
	if code, ok := letterCode(ans); ok {
		return code
	}
	for i, opt := range options {
		if opt = strings.TrimSpace(opt); opt != "" && opt == ans {
			return Codes[i]
		}
	}
	return raw
}

func letterCode(letter string) (string, bool) {
	for i, l := range Letters {
		if l == letter {
			return Codes[i], true
		}
	}
	return "", false
}
