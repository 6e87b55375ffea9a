// Package dedup computes fixed-size fingerprints of question text so near
// duplicates can be found with a vector index.
package dedup

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultDim is the fingerprint size used when none is configured.
const DefaultDim = 256

// Fingerprint hashes the character trigrams of text into dim buckets and
// L2-normalizes the result, so the dot product of two fingerprints is their
// cosine similarity. Case, punctuation, math markers and whitespace runs
// are ignored. Text with no letters or digits yields a zero vector.
func Fingerprint(text string, dim int) []float32 {
	if dim <= 0 {
		dim = DefaultDim
	}
	vec := make([]float32, dim)

	runes := []rune(" " + Canonical(text) + " ")
	if len(runes) < 3 || strings.TrimSpace(string(runes)) == "" {
		return vec
	}

	h := fnv.New32a()
	for i := 0; i+3 <= len(runes); i++ {
		h.Reset()
		h.Write([]byte(string(runes[i : i+3])))
		sum := h.Sum32()
		// The top bit picks a sign so collisions tend to cancel out.
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[int(sum&0x7fffffff)%dim] += sign
	}

	var norm2 float64
	for _, v := range vec {
		norm2 += float64(v) * float64(v)
	}
	if norm2 == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm2))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Canonical is the text fingerprints are computed from: NFC, lower case,
// letters, marks and digits only, single spaces between words.
func Canonical(text string) string {
	text = norm.NFC.String(text)
	var b strings.Builder
	space := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			space = true
		}
	}
	return b.String()
}

// Similarity is the cosine similarity of two fingerprints.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
