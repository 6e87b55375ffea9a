package notation

import (
	"fmt"
	"strings"
)

// Mode selects how math between $ markers is treated. It is chosen once per
// run and applies to every field of every record.
type Mode string

const (
	// ModePreserve keeps LaTeX math verbatim and only repairs converter
	// artifacts around it.
	ModePreserve Mode = "preserve"
	// ModeUnicode replaces delimited math with plain Unicode approximations.
	ModeUnicode Mode = "unicode"
)

// Normalizer rewrites the notation inside a text field.
type Normalizer interface {
	Normalize(s string) string
}

// ParseMode accepts a mode name from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePreserve:
		return ModePreserve, nil
	case ModeUnicode:
		return ModeUnicode, nil
	default:
		return "", fmt.Errorf("unknown notation mode %q (want %q or %q)", s, ModePreserve, ModeUnicode)
	}
}

// New returns the normalizer for mode. Unknown modes fall back to preserve.
func New(mode Mode) Normalizer {
	if mode == ModeUnicode {
		return Unicode{}
	}
	return Preserve{}
}
