package notation

import (
	"regexp"
	"strings"
)

var commandGlyphs = map[string]string{
	"alpha": "α",
	"beta":  "β",
	"gamma": "γ",
	"delta": "δ",
	"theta": "θ",
	"mu":    "μ",
	"pi":    "π",
	"sigma": "σ",
	"phi":   "φ",
	"omega": "ω",

	"times":  "×",
	"cdot":   "·",
	"pm":     "±",
	"approx": "≈",
	"neq":    "≠",
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
	'n': 'ⁿ', 'i': 'ⁱ', '+': '⁺', '-': '⁻',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄',
	'5': '₅', '6': '₆', '7': '₇', '8': '₈', '9': '₉',
	'+': '₊', '-': '₋', '=': '₌', '(': '₍', ')': '₎',
}

var (
	reDisplaySpan = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	reInlineSpan  = regexp.MustCompile(`(?s)\$(.+?)\$`)
	reCommand     = regexp.MustCompile(`\\([A-Za-z]+)`)
	reSuperscript = regexp.MustCompile(`([A-Za-z0-9)])\^(?:\{([^{}])\}|([A-Za-z0-9+\-]))`)
	reSubscript   = regexp.MustCompile(`([A-Za-z0-9)])_(?:\{([^{}])\}|([A-Za-z0-9+\-=()]))`)
)

// Unicode rewrites delimited math into plain text with Unicode glyphs. The
// $ markers are dropped; text outside them is left alone.
type Unicode struct{}

func (Unicode) Normalize(s string) string {
	s = reDisplaySpan.ReplaceAllStringFunc(s, func(m string) string {
		return toUnicode(reDisplaySpan.FindStringSubmatch(m)[1])
	})
	s = reInlineSpan.ReplaceAllStringFunc(s, func(m string) string {
		return toUnicode(reInlineSpan.FindStringSubmatch(m)[1])
	})
	return s
}

func toUnicode(eq string) string {
	eq = strings.TrimSpace(eq)
	eq = reCommand.ReplaceAllStringFunc(eq, func(m string) string {
		if g, ok := commandGlyphs[m[1:]]; ok {
			return g
		}
		return m
	})
	eq = scripts(reSuperscript, eq, superscripts, "^")
	eq = scripts(reSubscript, eq, subscripts, "_")
	eq = strings.ReplaceAll(eq, "=", " = ")
	return strings.Join(strings.Fields(eq), " ")
}

// scripts replaces base^c / base_c (c optionally braced) with the glyph for c,
// keeping the literal marker form when no glyph exists.
func scripts(re *regexp.Regexp, s string, glyphs map[rune]rune, marker string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		sub := re.FindStringSubmatch(m)
		c := sub[2] + sub[3]
		r := []rune(c)[0]
		if g, ok := glyphs[r]; ok {
			return sub[1] + string(g)
		}
		return sub[1] + marker + c
	})
}
