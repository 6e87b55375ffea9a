// Package mcqsheet converts MCQ documents written in the mixed
// Bengali/English question convention into spreadsheets, and keeps a
// searchable bank of every question it has exported.
package mcqsheet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/mcqsheet/dedup"
	"github.com/brunobiangulo/mcqsheet/imaging"
	"github.com/brunobiangulo/mcqsheet/mcq"
	"github.com/brunobiangulo/mcqsheet/notation"
	"github.com/brunobiangulo/mcqsheet/parser"
	"github.com/brunobiangulo/mcqsheet/sheet"
	"github.com/brunobiangulo/mcqsheet/store"
)

// Engine is the main entry point for document conversion.
type Engine interface {
	// Convert turns one document into a workbook and records the run.
	// Returns ErrNoRecords when no block yields a usable question.
	Convert(ctx context.Context, path string, opts ...ConvertOption) (*Result, error)

	// Import adds the rows of an existing export to the question bank.
	Import(ctx context.Context, path string) (*Result, error)

	// Runs lists past runs, newest first.
	Runs(ctx context.Context, limit int) ([]Run, error)

	// Run returns one run with its questions.
	Run(ctx context.Context, id string) (*Run, error)

	// DeleteRun removes a run and its questions from the bank.
	DeleteRun(ctx context.Context, id string) error

	// SearchQuestions runs a full-text search over the question bank.
	SearchQuestions(ctx context.Context, query string, limit int) ([]store.QuestionMatch, error)

	// Store returns the underlying store, or nil when it is disabled.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Result describes one finished conversion.
type Result struct {
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	OutputPath  string        `json:"output_path"`
	TablesPath  string        `json:"tables_path,omitempty"`
	TablesFound int           `json:"tables_found"`
	Method      string        `json:"method"`
	Strategy    string        `json:"strategy"`
	Stats       mcq.Stats     `json:"stats"`
	Duplicates  []Duplicate   `json:"duplicates,omitempty"`
	Records     []mcq.Record  `json:"-"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Duplicate pairs a newly exported question with a close match already in
// the question bank.
type Duplicate struct {
	Serial        string  `json:"serial"`
	MatchRunID    string  `json:"match_run_id"`
	MatchFilename string  `json:"match_filename"`
	MatchSerial   string  `json:"match_serial"`
	Score         float64 `json:"score"`
}

// Run is a stored conversion run.
type Run struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Filename   string           `json:"filename"`
	Format     string           `json:"format"`
	Converter  string           `json:"converter"`
	Notation   string           `json:"notation"`
	Strategy   string           `json:"strategy,omitempty"`
	OutputPath string           `json:"output_path,omitempty"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Stats      *mcq.Stats       `json:"stats,omitempty"`
	Metadata   sheet.Metadata   `json:"metadata"`
	CreatedAt  string           `json:"created_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Questions  []store.Question `json:"questions,omitempty"`
}

// ConvertOption configures a single conversion.
type ConvertOption func(*convertOptions)

type convertOptions struct {
	output   string
	mediaDir string
	upload   string
	meta     sheet.Metadata
	mode     notation.Mode
}

// WithOutput sets the workbook path. Defaults to the source path with an
// .xlsx extension.
func WithOutput(path string) ConvertOption {
	return func(o *convertOptions) { o.output = path }
}

// WithMetadata sets the Class, Subject and Chapter columns of every row.
func WithMetadata(class, subject, chapter string) ConvertOption {
	return func(o *convertOptions) {
		o.meta.Class = class
		o.meta.Subject = subject
		o.meta.Chapter = chapter
	}
}

// WithNotation overrides the configured notation mode for this run.
func WithNotation(mode notation.Mode) ConvertOption {
	return func(o *convertOptions) { o.mode = mode }
}

// WithMediaDir resolves image references against dir instead of the media
// extracted from the document. Useful for markup converted ahead of time.
func WithMediaDir(dir string) ConvertOption {
	return func(o *convertOptions) { o.mediaDir = dir }
}

// WithUpload marks the source and output as temporary files of an upload
// called name. The run records name as its source and keeps no output path,
// since neither file outlives the request.
func WithUpload(name string) ConvertOption {
	return func(o *convertOptions) { o.upload = name }
}

// SupportedFormats lists the file extensions Convert accepts.
func SupportedFormats() []string {
	return parser.NewRegistry(parser.ConverterAuto, "").Formats()
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	store   *store.Store
	parsers *parser.Registry
}

// New creates an engine. The question bank is opened unless
// cfg.DisableStore is set.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:     cfg,
		parsers: parser.NewRegistry(cfg.Converter, cfg.PandocPath),
	}

	if !cfg.DisableStore {
		s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Convert processes a document through the full pipeline.
func (e *engine) Convert(ctx context.Context, path string, opts ...ConvertOption) (*Result, error) {
	start := time.Now()
	options := &convertOptions{mode: notation.Mode(e.cfg.Notation)}
	for _, o := range opts {
		o(options)
	}
	mode, err := notation.ParseMode(string(options.mode))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	meta := options.meta
	meta.IDPrefix = e.cfg.QuestionIDPrefix

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	output := options.output
	if output == "" {
		output = strings.TrimSuffix(absPath, filepath.Ext(absPath)) + ".xlsx"
	}

	filename := filepath.Base(absPath)
	source, runOutput := absPath, output
	if options.upload != "" {
		source, filename, runOutput = options.upload, options.upload, ""
	}
	res := &Result{
		RunID:      uuid.NewString(),
		Source:     source,
		OutputPath: output,
	}
	e.beginRun(ctx, store.Run{
		ID:          res.RunID,
		SourcePath:  source,
		Filename:    filename,
		Format:      parser.FormatOf(absPath),
		ContentHash: hash,
		Converter:   e.cfg.Converter,
		Notation:    string(mode),
		Metadata:    marshal(meta),
	})

	work, err := os.MkdirTemp("", "mcqsheet-run-*")
	if err != nil {
		return nil, e.failRun(ctx, res.RunID, fmt.Errorf("creating workspace: %w", err))
	}
	defer os.RemoveAll(work)

	mediaDir := options.mediaDir
	if mediaDir == "" {
		mediaDir = filepath.Join(work, "media")
	}

	slog.Info("convert: parsing document", "file", filename, "run_id", res.RunID)
	parsed, err := e.parse(ctx, absPath, mediaDir)
	if err != nil {
		return nil, e.failRun(ctx, res.RunID, err)
	}
	res.Method = parsed.Method
	slog.Info("convert: parsing complete",
		"file", filename, "method", parsed.Method, "media", len(parsed.Media),
		"tables", len(parsed.Tables), "elapsed", time.Since(start).Round(time.Millisecond))

	extractor := mcq.NewExtractor(mediaDir,
		imaging.NewEncoder(e.cfg.MaxImageWidth, e.cfg.MaxImageHeight),
		notation.New(mode))
	doc := extractor.ExtractDocument(mcq.Flatten(parsed.Markup))
	res.Strategy = doc.Strategy
	res.Stats = doc.Stats
	res.Records = doc.Records

	slog.Info("convert: extraction complete",
		"file", filename, "strategy", doc.Strategy, "blocks", doc.Stats.Blocks,
		"records", doc.Stats.Records, "discarded", doc.Stats.Discarded(),
		"images_missing", doc.Stats.ImagesMissing)

	if len(doc.Records) == 0 {
		return nil, e.failRun(ctx, res.RunID, ErrNoRecords)
	}

	if err := sheet.Write(output, doc.Records, meta); err != nil {
		return nil, e.failRun(ctx, res.RunID, fmt.Errorf("writing workbook: %w", err))
	}

	res.TablesFound = len(parsed.Tables)
	if e.cfg.WriteTables && len(parsed.Tables) > 0 {
		res.TablesPath = tablesPath(output)
		html := parser.TablesDocument(filename, parsed.Tables)
		if err := os.WriteFile(res.TablesPath, []byte(html), 0o644); err != nil {
			slog.Warn("convert: tables sidecar not written", "path", res.TablesPath, "error", err)
			res.TablesPath = ""
		}
	}

	res.Duplicates = e.bank(ctx, res.RunID, doc.Records)
	e.finishRun(ctx, store.Run{
		ID:         res.RunID,
		Status:     store.StatusCompleted,
		Strategy:   doc.Strategy,
		OutputPath: runOutput,
		Stats:      marshal(doc.Stats),
		Converter:  parsed.Method,
	})

	res.Elapsed = time.Since(start)
	slog.Info("convert: workbook ready",
		"file", filename, "output", output, "records", len(doc.Records),
		"duplicates", len(res.Duplicates), "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// parse maps converter failures onto the engine's error kinds.
func (e *engine) parse(ctx context.Context, path, mediaDir string) (*parser.ParseResult, error) {
	p, format, err := e.parsers.ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedFormat, format, strings.Join(e.parsers.Formats(), ", "))
	}
	parsed, err := p.Parse(ctx, path, mediaDir)
	switch {
	case err == nil:
		return parsed, nil
	case errors.Is(err, parser.ErrPandocNotFound):
		return nil, fmt.Errorf("%w: %v", ErrConverterNotFound, err)
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
}

// Import stores the rows of an exported workbook in the question bank.
func (e *engine) Import(ctx context.Context, path string) (*Result, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	start := time.Now()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}
	table, err := sheet.Read(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	records, meta := table.Records()
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Source:     absPath,
		OutputPath: absPath,
		Method:     "import",
		Records:    records,
		Stats:      mcq.Stats{Blocks: len(records), Records: len(records)},
	}
	e.beginRun(ctx, store.Run{
		ID:          res.RunID,
		SourcePath:  absPath,
		Filename:    filepath.Base(absPath),
		Format:      "xlsx",
		ContentHash: hash,
		Converter:   "import",
		Notation:    e.cfg.Notation,
		Metadata:    marshal(meta),
	})
	res.Duplicates = e.bank(ctx, res.RunID, records)
	e.finishRun(ctx, store.Run{
		ID:         res.RunID,
		Status:     store.StatusCompleted,
		OutputPath: absPath,
		Stats:      marshal(res.Stats),
	})

	res.Elapsed = time.Since(start)
	slog.Info("import: workbook stored", "file", absPath, "records", len(records),
		"duplicates", len(res.Duplicates), "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// bank stores the records and their fingerprints. Each fingerprint is
// compared against the bank before it is added, so duplicates inside one
// document are reported too. Store failures are logged and never fail the
// conversion, since the workbook has already been written.
func (e *engine) bank(ctx context.Context, runID string, records []mcq.Record) []Duplicate {
	if e.store == nil {
		return nil
	}

	questions := make([]store.Question, len(records))
	for i, r := range records {
		questions[i] = store.Question{
			Position:    i,
			Serial:      r.Serial,
			Question:    r.Question,
			Topic:       r.Topic,
			Difficulty:  r.Difficulty,
			Board:       r.Board,
			Options:     r.Options,
			Answer:      r.Answer,
			Hint:        r.Hint,
			Explanation: r.Explanation,
			IsPattern2:  r.IsPattern2,
			HasImages:   r.HasImages(),
		}
	}
	ids, err := e.store.InsertQuestions(ctx, runID, questions)
	if err != nil {
		slog.Warn("convert: storing questions failed", "run_id", runID, "error", err)
		return nil
	}

	var dups []Duplicate
	for i, r := range records {
		fp := dedup.Fingerprint(fingerprintText(r), e.cfg.EmbeddingDim)
		if dedup.Similarity(fp, fp) == 0 {
			continue
		}

		matches, err := e.store.NearestQuestions(ctx, fp, 1)
		if err != nil {
			slog.Warn("convert: duplicate lookup failed", "serial", r.Serial, "error", err)
		} else if len(matches) > 0 && matches[0].Score >= e.cfg.DuplicateThreshold {
			m := matches[0]
			slog.Debug("convert: duplicate question", "serial", r.Serial,
				"match_run", m.RunID, "match_serial", m.Serial, "score", m.Score)
			dups = append(dups, Duplicate{
				Serial:        r.Serial,
				MatchRunID:    m.RunID,
				MatchFilename: m.Filename,
				MatchSerial:   m.Serial,
				Score:         m.Score,
			})
		}

		if err := e.store.InsertEmbedding(ctx, ids[i], fp); err != nil {
			slog.Warn("convert: storing fingerprint failed", "serial", r.Serial, "error", err)
		}
	}
	return dups
}

// fingerprintText is the question together with its options, so two
// questions that share a stem but differ in choices stay apart.
func fingerprintText(r mcq.Record) string {
	parts := append([]string{r.Question}, r.Options[:]...)
	return strings.Join(parts, " ")
}

func (e *engine) beginRun(ctx context.Context, r store.Run) {
	if e.store == nil {
		return
	}
	if err := e.store.CreateRun(ctx, r); err != nil {
		slog.Warn("convert: recording run failed", "run_id", r.ID, "error", err)
	}
}

func (e *engine) finishRun(ctx context.Context, r store.Run) {
	if e.store == nil {
		return
	}
	if err := e.store.FinishRun(ctx, r); err != nil {
		slog.Warn("convert: finishing run failed", "run_id", r.ID, "error", err)
	}
}

// failRun marks the run failed and returns err unchanged. The status is
// written even when ctx has been cancelled.
func (e *engine) failRun(ctx context.Context, runID string, err error) error {
	e.finishRun(context.WithoutCancel(ctx), store.Run{ID: runID, Status: store.StatusFailed, Error: err.Error()})
	return err
}

// Runs lists stored runs.
func (e *engine) Runs(ctx context.Context, limit int) ([]Run, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	rows, err := e.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = toRun(r)
	}
	return runs, nil
}

// Run returns a stored run with its questions.
func (e *engine) Run(ctx context.Context, id string) (*Run, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	r, err := e.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run := toRun(*r)
	if run.Questions, err = e.store.QuestionsByRun(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes a run and everything stored for it.
func (e *engine) DeleteRun(ctx context.Context, id string) error {
	if e.store == nil {
		return ErrStoreDisabled
	}
	if err := e.store.DeleteRun(ctx, id); errors.Is(err, store.ErrNotFound) {
		return ErrRunNotFound
	} else if err != nil {
		return err
	}
	return nil
}

// SearchQuestions searches question, topic and option text.
func (e *engine) SearchQuestions(ctx context.Context, query string, limit int) ([]store.QuestionMatch, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	return e.store.SearchQuestions(ctx, query, limit)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close closes the question bank.
func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func toRun(r store.Run) Run {
	run := Run{
		ID:         r.ID,
		Source:     r.SourcePath,
		Filename:   r.Filename,
		Format:     r.Format,
		Converter:  r.Converter,
		Notation:   r.Notation,
		Strategy:   r.Strategy,
		OutputPath: r.OutputPath,
		Status:     r.Status,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Stats != "" {
		var st mcq.Stats
		if err := json.Unmarshal([]byte(r.Stats), &st); err == nil {
			run.Stats = &st
		}
	}
	if r.Metadata != "" {
		json.Unmarshal([]byte(r.Metadata), &run.Metadata)
	}
	return run
}

// tablesPath is the sidecar next to the workbook: exam.xlsx -> exam_tables.html.
func tablesPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_tables.html"
}

func marshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
