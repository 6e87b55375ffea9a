package mcq

import (
	"regexp"
	"strings"
)

// SerialStrategy recognizes question serials written in one numbering
// script. A serial is preceded by the start of the text or whitespace and
// followed by a separator (. , ) ।) and a run of whitespace.
type SerialStrategy struct {
	Name    string
	pattern *regexp.Regexp
}

// NewSerialStrategy builds a strategy for the given digit character class,
// e.g. "০-৯" or "0-9".
func NewSerialStrategy(name, digits string) SerialStrategy {
	return SerialStrategy{
		Name:    name,
		pattern: regexp.MustCompile(`(?:^|\s)([` + digits + `]+)[.,)।]\s+`),
	}
}

// Split cuts text at every serial this strategy recognizes. ok is true only
// when more than one serial was found; a single match is indistinguishable
// from a stray number and does not count as a successful segmentation.
func (s SerialStrategy) Split(text string) (blocks []Block, ok bool) {
	locs := s.pattern.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := text[loc[1]:end]
		if strings.TrimSpace(body) == "" {
			continue
		}
		blocks = append(blocks, Block{
			Serial: text[loc[2]:loc[3]],
			Text:   body,
		})
	}
	return blocks, len(locs) > 1
}

// DefaultStrategies is the fallback order: native Bengali numerals, then
// ASCII numerals, then either script.
var DefaultStrategies = []SerialStrategy{
	NewSerialStrategy("bengali", "০-৯"),
	NewSerialStrategy("ascii", "0-9"),
	NewSerialStrategy("combined", "০-৯0-9"),
}

// Segmentation is the outcome of splitting a document into blocks.
type Segmentation struct {
	Blocks   []Block
	Strategy string // name of the strategy that produced Blocks
}

// Segmenter tries its strategies in order and stops at the first that finds
// more than one serial. When none does, the last strategy's result is kept.
type Segmenter struct {
	strategies []SerialStrategy
}

// NewSegmenter returns a segmenter over the given strategies, or
// DefaultStrategies when none are given.
func NewSegmenter(strategies ...SerialStrategy) *Segmenter {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Segmenter{strategies: strategies}
}

// Segment splits flattened document text into ordered blocks.
func (s *Segmenter) Segment(text string) Segmentation {
	var seg Segmentation
	for _, st := range s.strategies {
		blocks, ok := st.Split(text)
		seg = Segmentation{Blocks: blocks, Strategy: st.Name}
		if ok {
			break
		}
	}
	return seg
}
