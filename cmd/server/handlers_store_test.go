//go:build cgo && sqlite_fts5

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/mcqsheet"
)

func storeEngine(t *testing.T) mcqsheet.Engine {
	t.Helper()
	cfg := mcqsheet.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "bank.db")
	cfg.EmbeddingDim = 64
	e, err := mcqsheet.New(cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestUploadRunAndHealthCounts(t *testing.T) {
	h := newRouter(storeEngine(t), "", "")

	rec := serve(h, uploadRequest(t, "/convert", "exam.tex", examTex, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d, body = %s", rec.Code, rec.Body.String())
	}
	id := rec.Header().Get("X-Run-ID")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var run mcqsheet.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.Source != "exam.tex" || run.Filename != "exam.tex" {
		t.Errorf("source/filename = %q/%q, want exam.tex", run.Source, run.Filename)
	}
	if run.OutputPath != "" {
		t.Errorf("run kept the removed upload output %q", run.OutputPath)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body struct {
		Status string `json:"status"`
		Store  bool   `json:"store"`
		Bank   struct {
			Runs       int `json:"runs"`
			Questions  int `json:"questions"`
			Embeddings int `json:"embeddings"`
		} `json:"bank"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || !body.Store {
		t.Errorf("health = %s", rec.Body.String())
	}
	if body.Bank.Runs != 1 || body.Bank.Questions != 2 || body.Bank.Embeddings != 2 {
		t.Errorf("bank counts = %+v", body.Bank)
	}
}
