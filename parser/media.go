package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const mediaPrefix = "word/media/"

// MediaFile describes one file extracted from a document archive.
type MediaFile struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ExtractMedia copies every word/media entry of the DOCX archive at src into
// dir, flattened to its basename. Entries that cannot be read are skipped.
func ExtractMedia(src, dir string) ([]MediaFile, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media dir: %w", err)
	}

	var files []MediaFile
	for _, zf := range r.File {
		if !strings.HasPrefix(zf.Name, mediaPrefix) || zf.FileInfo().IsDir() {
			continue
		}
		name := path.Base(zf.Name)
		data, err := readZipFile(zf)
		if err != nil {
			slog.Debug("docx: failed to read media", "path", zf.Name, "error", err)
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return files, fmt.Errorf("writing media %s: %w", name, err)
		}

		mf := MediaFile{Name: name, MIMEType: mimeFromExt(path.Ext(name)), Size: len(data)}
		mf.Width, mf.Height = imageSize(data)
		files = append(files, mf)
	}
	return files, nil
}

func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// mimeFromExt returns the MIME type for common image extensions.
func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	case ".emf":
		return "image/emf"
	case ".wmf":
		return "image/wmf"
	default:
		return "application/octet-stream"
	}
}

// imageSize returns the width and height of an image from its encoded bytes.
func imageSize(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
