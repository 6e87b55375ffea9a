package notation

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixed-point loop in Preserve.Normalize.
const maxPasses = 8

var (
	// The converter splits an equation around \neq into two spans joined
	// by $\neq$; rejoin them.
	reSplitNeq    = regexp.MustCompile(`\$([^$]*?)[ \t]*\$\\neq\$[ \t]*([^$]*?)\$`)
	reParenDelim  = regexp.MustCompile(`\\[()]`)
	reMarkerRun   = regexp.MustCompile(`\${2,}`)
	reSpaceAfter  = regexp.MustCompile(`\$[ \t]+`)
	reSpaceBefore = regexp.MustCompile(`[ \t]+\$`)
	reMathSpan    = regexp.MustCompile(`\$[^$]+?\$`)
	reSlashBefore = regexp.MustCompile(`[/\\]+[ \t]*\$`)
	reSlashAfter  = regexp.MustCompile(`\$[ \t]*(?:/+|\\+([^A-Za-z\\{}]|$))`)
	reSpaceRun    = regexp.MustCompile(`[ \t]{2,}`)
	reLineEdge    = regexp.MustCompile(`[ \t]*\n[ \t]*`)

	reBoldBracket = regexp.MustCompile(`\\textbf\{\{\[\}\}(.*?)\\textbf\{\{\]\}\}`)

	// Wrappers are unwrapped innermost first; the fixed-point loop takes
	// care of nesting.
	reWrappers = []*regexp.Regexp{
		regexp.MustCompile(`\\textbf\{([^{}]*)\}`),
		regexp.MustCompile(`\\textit\{([^{}]*)\}`),
		regexp.MustCompile(`\\emph\{([^{}]*)\}`),
	}

	// Multi-line equation systems, keyed by environment name. RE2 has no
	// backreferences, so each environment gets its own pattern.
	reSystems  = envPatterns(`(?s)\\left\\\{\s*\\begin\{%s\}(?:\{[^}]*\})?(.*?)\\end\{%s\}(?:\s*\\right\.)?`, "matrix", "array", "cases")
	reDisplays = envPatterns(`(?s)\\begin\{%s\*?\}(.*?)\\end\{%s\*?\}`, "equation", "align", "gather", "eqnarray")
)

var bracketArtifacts = strings.NewReplacer(
	`\textbf{:}`, ":",
	`\textbf{?}`, "?",
	`{\[}`, "[",
	`{\]}`, "]",
	`{[}`, "[",
	`{]}`, "]",
)

var alignOperators = strings.NewReplacer(
	`&=`, "=",
	`&<`, "<",
	`&>`, ">",
	`&\leq`, `\leq`,
	`&\geq`, `\geq`,
	`&`, "",
)

func envPatterns(tmpl string, envs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(envs))
	for i, env := range envs {
		out[i] = regexp.MustCompile(strings.ReplaceAll(tmpl, "%s", regexp.QuoteMeta(env)))
	}
	return out
}

// Preserve keeps math verbatim between $ markers and cleans up what the
// converter leaves around it.
type Preserve struct{}

// Normalize applies the cleanup until the text stops changing, so running it
// again on its own output is a no-op.
func (Preserve) Normalize(s string) string {
	for range maxPasses {
		next := cleanPass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanPass(s string) string {
	s = reSplitNeq.ReplaceAllString(s, `$${1} \neq ${2}$$`)
	s = reParenDelim.ReplaceAllLiteralString(s, "$")
	s = reMarkerRun.ReplaceAllLiteralString(s, "$")

	for _, re := range reSystems {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			return linearize(re.FindStringSubmatch(m)[1])
		})
	}
	for _, re := range reDisplays {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			return "$" + strings.TrimSpace(re.FindStringSubmatch(m)[1]) + "$"
		})
	}

	s = reSpaceAfter.ReplaceAllLiteralString(s, "$")
	s = reSpaceBefore.ReplaceAllLiteralString(s, "$")

	s = reBoldBracket.ReplaceAllString(s, "[$1]")
	s = bracketArtifacts.Replace(s)
	for _, re := range reWrappers {
		s = re.ReplaceAllString(s, "$1")
	}

	s = reSlashBefore.ReplaceAllLiteralString(s, " $")
	s = reSlashAfter.ReplaceAllString(s, "$$ $1")

	s = reMathSpan.ReplaceAllString(s, " $0 ")
	s = reSpaceRun.ReplaceAllString(s, " ")
	s = reLineEdge.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// linearize flattens the body of an equation system into one line: row
// breaks become commas and alignment markers collapse into their operator.
func linearize(body string) string {
	rows := strings.Split(body, `\\`)
	out := rows[:0]
	for _, r := range rows {
		r = strings.TrimSpace(alignOperators.Replace(r))
		if r != "" {
			out = append(out, r)
		}
	}
	return strings.Join(out, ", ")
}
