package sheet

import (
	"regexp"
	"strings"
)

// mathSymbols mark an answer as an expression that needs $ delimiters.
var mathSymbols = []string{
	"+", "-", "=", "^", "_",
	`\times`, `\cdot`, `\frac`, `\sqrt`, `\alpha`, `\beta`,
	`\sum`, `\int`, `\pi`, `\infty`,
}

// latexCommands are the command names repaired inside $...$ spans.
var latexCommands = []string{
	"frac", "sqrt", "times", "cdot", "alpha", "beta", "gamma", "delta", "theta",
	"sum", "int", "infty", "pi", "sin", "cos", "tan", "log", "ln", "lim", "text",
}

var (
	reEquation     = regexp.MustCompile(`\$(.*?)\$`)
	reBareCommand  = regexp.MustCompile(`^(` + strings.Join(latexCommands, "|") + `)(?:[^A-Za-z]|$)`)
	reDoubledSlash = regexp.MustCompile(`\\\\(` + strings.Join(latexCommands, "|") + `)`)
	reSpacedSlash  = regexp.MustCompile(`\\ {1,3}(` + strings.Join(latexCommands, "|") + `)`)
)

// EnsureDelimiters wraps an answer that looks like math but carries no
// $ markers. Text that already has a marker is left alone.
func EnsureDelimiters(text string) string {
	if text == "" || strings.Contains(text, "$") {
		return text
	}
	for _, sym := range mathSymbols {
		if strings.Contains(text, sym) {
			return "$" + text + "$"
		}
	}
	return text
}

// RepairLatex fixes the usual damage to commands inside $...$ spans: inline
// \( \) markers left behind, a missing leading backslash, doubled
// backslashes and spaces between the backslash and the command name.
func RepairLatex(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	return reEquation.ReplaceAllStringFunc(text, func(m string) string {
		eq := m[1 : len(m)-1]
		eq = strings.ReplaceAll(eq, `\(`, "")
		eq = strings.ReplaceAll(eq, `\)`, "")
		eq = strings.TrimSpace(eq)
		if reBareCommand.MatchString(eq) {
			eq = `\` + eq
		}
		eq = reDoubledSlash.ReplaceAllString(eq, `\$1`)
		eq = reSpacedSlash.ReplaceAllString(eq, `\$1`)
		return "$" + eq + "$"
	})
}

// GuardFormula keeps spreadsheet applications from evaluating a cell that
// opens with a formula character.
func GuardFormula(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	switch text[0] {
	case '=', '+', '-':
		return "'" + text
	}
	return text
}

// Unguard reverses GuardFormula when reading an exported sheet back.
func Unguard(text string) string {
	if len(text) > 1 && text[0] == '\'' {
		switch text[1] {
		case '=', '+', '-':
			return text[1:]
		}
	}
	return text
}
