package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 600

	// MaxURILength is the longest text a spreadsheet cell holds.
	MaxURILength = 32767

	shrinkFactor = 0.75
	minSide      = 16
)

// ErrTooLarge is returned when an image cannot be shrunk below MaxURILength.
var ErrTooLarge = errors.New("imaging: encoded image exceeds cell limit")

// Encoder turns image files into data URIs. It memoises by path, so one
// encoder should live for a single document run.
type Encoder struct {
	maxWidth, maxHeight int

	mu   sync.Mutex
	memo map[string]string
}

// NewEncoder returns an encoder capping images at maxWidth x maxHeight.
// Non-positive bounds fall back to 800x600.
func NewEncoder(maxWidth, maxHeight int) *Encoder {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return &Encoder{
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		memo:      make(map[string]string),
	}
}

// DataURI encodes the file at path. Any failure yields "".
func (e *Encoder) DataURI(path string) string {
	e.mu.Lock()
	if uri, ok := e.memo[path]; ok {
		e.mu.Unlock()
		return uri
	}
	e.mu.Unlock()

	uri, err := e.encodeFile(path)
	if err != nil {
		slog.Warn("imaging: image skipped", "path", path, "error", err)
		uri = ""
	}

	e.mu.Lock()
	e.memo[path] = uri
	e.mu.Unlock()
	return uri
}

func (e *Encoder) encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Encode(data, filepath.Ext(path), e.maxWidth, e.maxHeight)
}

// Encode decodes data, fits it inside maxWidth x maxHeight keeping the aspect
// ratio and re-encodes it as a data URI. The output format follows ext for
// jpg, jpeg, png and gif and is png for everything else. Images whose URI
// would not fit in a cell are shrunk further until they do.
func Encode(data []byte, ext string, maxWidth, maxHeight int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	format := OutputFormat(ext)
	w, h := Fit(img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
	for {
		uri, err := encodeAt(img, format, w, h)
		if err != nil {
			return "", err
		}
		if len(uri) <= MaxURILength {
			return uri, nil
		}
		w, h = int(float64(w)*shrinkFactor), int(float64(h)*shrinkFactor)
		if w < minSide || h < minSide {
			return "", ErrTooLarge
		}
	}
}

func encodeAt(img image.Image, format string, w, h int) (string, error) {
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		img = resize(img, w, h)
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", format, err)
	}
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func resize(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// OutputFormat maps a file extension to the format used in the data URI.
func OutputFormat(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpg", "jpeg", "png", "gif":
		return ext
	default:
		return "png"
	}
}

// Fit scales w x h down to fit inside maxW x maxH, keeping the aspect ratio.
// Images already inside the box are returned unchanged.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)
	return nw, nh
}
