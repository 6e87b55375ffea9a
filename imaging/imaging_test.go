package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("creating test PNG: %v", err)
	}
	return buf.Bytes()
}

func decodeURI(t *testing.T, uri string) image.Config {
	t.Helper()
	_, payload, ok := strings.Cut(uri, ";base64,")
	if !ok {
		t.Fatalf("not a base64 data URI: %.40s", uri)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding image config: %v", err)
	}
	return cfg
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{200, 150, 200, 150},
		{1600, 1200, 800, 600},
		{1000, 300, 800, 240},
		{300, 1200, 150, 600},
		{800, 600, 800, 600},
	}
	for _, tt := range tests {
		w, h := Fit(tt.w, tt.h, 800, 600)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("Fit(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".png", "png"},
		{".JPG", "jpg"},
		{".jpeg", "jpeg"},
		{".gif", "gif"},
		{".bmp", "png"},
		{".emf", "png"},
		{"", "png"},
	}
	for _, tt := range tests {
		if got := OutputFormat(tt.ext); got != tt.want {
			t.Errorf("OutputFormat(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestDataURICapsDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.png")
	if err := os.WriteFile(path, createTestPNG(t, 1600, 1200), 0o644); err != nil {
		t.Fatal(err)
	}

	uri := NewEncoder(0, 0).DataURI(path)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %.40s", uri)
	}
	cfg := decodeURI(t, uri)
	if cfg.Width > 800 || cfg.Height > 600 {
		t.Errorf("image not capped: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*3 != cfg.Height*4 {
		t.Errorf("aspect ratio lost: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestDataURIUnknownExtensionIsPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "figure.bin")
	if err := os.WriteFile(path, createTestPNG(t, 40, 40), 0o644); err != nil {
		t.Fatal(err)
	}
	uri := NewEncoder(0, 0).DataURI(path)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("unexpected prefix: %.40s", uri)
	}
}

func TestDataURIMissingOrBroken(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(broken, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	enc := NewEncoder(0, 0)
	if got := enc.DataURI(filepath.Join(dir, "missing.png")); got != "" {
		t.Errorf("missing file: got %.40s, want empty", got)
	}
	if got := enc.DataURI(broken); got != "" {
		t.Errorf("broken file: got %.40s, want empty", got)
	}
}

func TestDataURIFitsCell(t *testing.T) {
	// Noise does not compress, so the first encoding is far over the limit.
	img := image.NewRGBA(image.Rect(0, 0, 400, 400))
	seed := uint32(1)
	for i := range img.Pix {
		seed = seed*1664525 + 1013904223
		img.Pix[i] = byte(seed >> 24)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	uri, err := Encode(buf.Bytes(), ".png", 800, 600)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(uri) > MaxURILength {
		t.Errorf("uri length %d exceeds %d", len(uri), MaxURILength)
	}
	if cfg := decodeURI(t, uri); cfg.Width >= 400 {
		t.Errorf("expected a downscaled image, got width %d", cfg.Width)
	}
}
