package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/mcqsheet"
	"github.com/brunobiangulo/mcqsheet/store"
)

const examTex = `1. What is 2+2? [Topic: Arithmetic] [Easy]
ক. 3
খ. 4
গ. 5
ঘ. 6
উত্তর: খ
2. Which of these is a planet?
ক. Sun
খ. Earth
উত্তর: Earth
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "exam.tex")
	writeFile(t, src, examTex)
	outDir := filepath.Join(dir, "sheets")

	out, err := execute(t, "convert", src, "--no-store", "--output-dir", outDir, "--class", "Nine")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := filepath.Join(outDir, "exam.xlsx")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}
	if !strings.Contains(out, "2 questions") || !strings.Contains(out, want) {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, "inspect", want)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, s := range []string{"Questions:  2", "Class:      Nine", "What is 2+2?"} {
		if !strings.Contains(out, s) {
			t.Errorf("inspect output missing %q:\n%s", s, out)
		}
	}
}

func TestConvertBatchJSON(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tex")
	b := filepath.Join(dir, "b.tex")
	writeFile(t, a, examTex)
	writeFile(t, b, examTex)

	out, err := execute(t, "convert", a, b, "--no-store", "--jobs", "2", "--json", "-q")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	var entries []struct {
		File   string `json:"file"`
		Result *struct {
			OutputPath string `json:"output_path"`
			Strategy   string `json:"strategy"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for i, want := range []string{"a.xlsx", "b.xlsx"} {
		e := entries[i]
		if e.Error != "" || e.Result == nil {
			t.Fatalf("entry %d failed: %+v", i, e)
		}
		if filepath.Base(e.Result.OutputPath) != want || e.Result.Strategy != "ascii" {
			t.Errorf("entry %d = %+v", i, *e.Result)
		}
	}
}

func TestConvertNoRecords(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	writeFile(t, src, "just some prose, no questions here\n")

	out, err := execute(t, "convert", src, "--no-store")
	if !errors.Is(err, mcqsheet.ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
	if !strings.Contains(out, "Pattern 2") {
		t.Errorf("help text not printed:\n%s", out)
	}
}

func TestConvertBatchPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.tex")
	bad := filepath.Join(dir, "slides.pptx")
	writeFile(t, good, examTex)
	writeFile(t, bad, "x")

	out, err := execute(t, "convert", good, bad, "--no-store", "-q")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 documents failed") {
		t.Fatalf("expected batch failure, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "good.xlsx")); err != nil {
		t.Errorf("good document not converted: %v", err)
	}
	if !strings.Contains(out, "unsupported document format") {
		t.Errorf("failure not reported:\n%s", out)
	}
}

func TestConvertFlagErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "exam.tex")
	writeFile(t, src, examTex)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad converter", []string{"convert", src, "--no-store", "--converter", "word"}, mcqsheet.ErrInvalidConfig},
		{"bad notation", []string{"convert", src, "--no-store", "--notation", "mathml"}, mcqsheet.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := execute(t, "convert", src, src, "--no-store", "--output", "x.xlsx"); err == nil {
		t.Error("expected error for --output with several inputs")
	}
	if _, err := execute(t, "convert"); err == nil {
		t.Error("expected error without inputs")
	}
}

func TestStoreCommandsDisabled(t *testing.T) {
	for _, args := range [][]string{
		{"runs", "--no-store"},
		{"runs", "show", "abc", "--no-store"},
		{"runs", "delete", "abc", "--no-store"},
		{"search", "planet", "--no-store"},
	} {
		if _, err := execute(t, args...); !errors.Is(err, mcqsheet.ErrStoreDisabled) {
			t.Errorf("%v: expected ErrStoreDisabled, got %v", args, err)
		}
	}
}

func TestGlobalFlagsApplied(t *testing.T) {
	var got mcqsheet.Config
	orig := openEngine
	openEngine = func(cfg mcqsheet.Config) (mcqsheet.Engine, error) {
		got = cfg
		return nil, errors.New("stop")
	}
	t.Cleanup(func() { openEngine = orig })

	dbPath := filepath.Join(t.TempDir(), "bank.db")
	if _, err := execute(t, "runs", "--db", dbPath); err == nil || err.Error() != "stop" {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DBPath != dbPath || got.DisableStore {
		t.Errorf("config = %+v", got)
	}
}

func TestInspectNotAnExport(t *testing.T) {
	if _, err := execute(t, "inspect", filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected error for missing workbook")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated text", 5, "trun…"},
		{"বাংলা প্রশ্ন", 6, "বাংলা…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestConvertHelpListsFormats(t *testing.T) {
	out, err := execute(t, "convert", "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out, "Supported formats: doc, docx, md, pdf, tex, txt") {
		t.Errorf("help does not list formats:\n%s", out)
	}
}

func TestPrintBankSummary(t *testing.T) {
	var buf bytes.Buffer
	printBankSummary(&buf, &store.DBStats{Runs: 3, Questions: 40, Embeddings: 38})
	want := "\nQuestion bank: 3 runs, 40 questions, 38 fingerprints\n"
	if buf.String() != want {
		t.Errorf("summary = %q, want %q", buf.String(), want)
	}
}
