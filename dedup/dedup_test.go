package dedup

import (
	"math"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  Hello,   World! ", "hello world"},
		{"$x^2$ + 1", "x 2 1"},
		{"বাংলাদেশের রাজধানী কোনটি?", "বাংলাদেশের রাজধানী কোনটি"},
		{"\n\t", ""},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintNormalized(t *testing.T) {
	v := Fingerprint("বাংলাদেশের রাজধানী কোনটি?", 64)
	if len(v) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(v))
	}
	if s := Similarity(v, v); math.Abs(s-1) > 1e-5 {
		t.Errorf("self similarity = %f, want 1", s)
	}
}

func TestFingerprintEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "?!"} {
		v := Fingerprint(in, 8)
		for _, x := range v {
			if x != 0 {
				t.Fatalf("Fingerprint(%q) is not the zero vector: %v", in, v)
			}
		}
	}
	if got := len(Fingerprint("abc", 0)); got != DefaultDim {
		t.Errorf("default dim = %d, want %d", got, DefaultDim)
	}
}

func TestFingerprintSimilarity(t *testing.T) {
	base := Fingerprint("Which gas do plants absorb during photosynthesis?", 256)
	same := Fingerprint("which gas do plants  absorb during photosynthesis", 256)
	near := Fingerprint("Which gas do green plants absorb during photosynthesis?", 256)
	far := Fingerprint("বাংলাদেশের রাজধানী কোনটি?", 256)

	if s := Similarity(base, same); math.Abs(s-1) > 1e-5 {
		t.Errorf("case/punctuation variant similarity = %f, want 1", s)
	}
	sNear := Similarity(base, near)
	sFar := Similarity(base, far)
	if sNear < 0.8 {
		t.Errorf("near duplicate similarity = %f, want >= 0.8", sNear)
	}
	if sFar > 0.3 {
		t.Errorf("unrelated question similarity = %f, want <= 0.3", sFar)
	}
}

func TestSimilarityDimMismatch(t *testing.T) {
	if s := Similarity([]float32{1}, []float32{1, 0}); s != 0 {
		t.Errorf("expected 0 for mismatched dims, got %f", s)
	}
}
