package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/mcqsheet"
	"github.com/brunobiangulo/mcqsheet/notation"
)

const (
	maxUploadSize = 100 << 20 // 100MB
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type handler struct {
	engine mcqsheet.Engine
}

func newHandler(e mcqsheet.Engine) *handler {
	return &handler{engine: e}
}

// POST /convert
// Accepts a multipart upload in the "file" field with optional class,
// subject, chapter and notation fields. Responds with the workbook, or with
// the run result when format=json.
func (h *handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart form with a 'file' field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)
	if safeName == "." || safeName == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	tmpDir, err := os.MkdirTemp("", "mcqsheet-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating upload dir", "error", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	src := filepath.Join(tmpDir, safeName)
	if err := saveUpload(src, file); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}

	opts := []mcqsheet.ConvertOption{
		mcqsheet.WithOutput(filepath.Join(tmpDir, "export.xlsx")),
		mcqsheet.WithUpload(safeName),
		mcqsheet.WithMetadata(r.FormValue("class"), r.FormValue("subject"), r.FormValue("chapter")),
	}
	if mode := r.FormValue("notation"); mode != "" {
		opts = append(opts, mcqsheet.WithNotation(notation.Mode(strings.ToLower(mode))))
	}

	res, err := h.engine.Convert(ctx, src, opts...)
	if err != nil {
		writeEngineError(w, err, "conversion failed")
		slog.Error("convert error", "filename", safeName, "error", err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		// The workbook and sidecar live in the upload dir and are removed
		// with it.
		res.OutputPath = ""
		res.TablesPath = ""
		writeJSON(w, http.StatusOK, res)
		return
	}

	out, err := os.Open(res.OutputPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read workbook")
		slog.Error("opening workbook", "error", err)
		return
	}
	defer out.Close()

	download := strings.TrimSuffix(safeName, filepath.Ext(safeName)) + ".xlsx"
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download}))
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Questions", strconv.Itoa(res.Stats.Records))
	w.Header().Set("X-Duplicates", strconv.Itoa(len(res.Duplicates)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		slog.Warn("streaming workbook", "run_id", res.RunID, "error", err)
	}
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// GET /runs?limit=N
func (h *handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 50, 0, 1000)
	if !ok {
		return
	}

	runs, err := h.engine.Runs(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err, "failed to list runs")
		slog.Error("list runs error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// GET /runs/{id}
func (h *handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.engine.Run(r.Context(), id)
	if err != nil {
		writeEngineError(w, err, "failed to load run")
		if !errors.Is(err, mcqsheet.ErrRunNotFound) {
			slog.Error("get run error", "run_id", id, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// DELETE /runs/{id}
func (h *handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.DeleteRun(r.Context(), id); err != nil {
		writeEngineError(w, err, "delete failed")
		if !errors.Is(err, mcqsheet.ErrRunNotFound) {
			slog.Error("delete error", "run_id", id, "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /questions?q=...&limit=N
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := queryInt(w, r, "limit", 20, 1, 100)
	if !ok {
		return
	}

	matches, err := h.engine.SearchQuestions(r.Context(), q, limit)
	if err != nil {
		writeEngineError(w, err, "search failed")
		slog.Error("search error", "query", q, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":     q,
		"questions": matches,
	})
}

// GET /health
// Reports question bank counts when the store is enabled.
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
		"store":  false,
	}
	if s := h.engine.Store(); s != nil {
		body["store"] = true
		stats, err := s.Stats(r.Context())
		if err != nil {
			slog.Warn("health: reading bank stats", "error", err)
			body["status"] = "degraded"
		} else {
			body["bank"] = stats
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// queryInt reads an optional integer parameter within [lo, hi]. It writes
// a 400 and returns false when the value is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mcqsheet.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, mcqsheet.ErrNoRecords), errors.Is(err, mcqsheet.ErrConversionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mcqsheet.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, mcqsheet.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, mcqsheet.ErrStoreDisabled), errors.Is(err, mcqsheet.ErrConverterNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError reports err with its mapped status. Internal errors get
// the generic message instead of the error text.
func writeEngineError(w http.ResponseWriter, err error, generic string) {
	status := statusFor(err)
	switch {
	case status == http.StatusInternalServerError:
		writeError(w, status, generic)
	case errors.Is(err, mcqsheet.ErrNoRecords):
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
			"help":  mcqsheet.NoRecordsHelp,
		})
	default:
		writeError(w, status, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
