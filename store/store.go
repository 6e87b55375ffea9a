// Package store persists conversion runs and the question bank they build
// up in SQLite, with FTS5 search and sqlite-vec fingerprints.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run represents a row in the runs table.
type Run struct {
	ID          string `json:"id"`
	SourcePath  string `json:"source_path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Converter   string `json:"converter"`
	Notation    string `json:"notation"`
	Strategy    string `json:"strategy,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	Status      string `json:"status"`
	Stats       string `json:"stats,omitempty"`    // JSON object
	Metadata    string `json:"metadata,omitempty"` // JSON object
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
}

// Question represents a row in the questions table. Images are not kept;
// HasImages records that the exported row carried any.
type Question struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Position    int       `json:"position"`
	Serial      string    `json:"serial"`
	Question    string    `json:"question"`
	Topic       string    `json:"topic"`
	Difficulty  string    `json:"difficulty"`
	Board       string    `json:"board"`
	Options     [4]string `json:"options"`
	Answer      string    `json:"answer"`
	Hint        string    `json:"hint"`
	Explanation string    `json:"explanation"`
	IsPattern2  bool      `json:"is_pattern2"`
	HasImages   bool      `json:"has_images"`
}

// QuestionMatch is a question returned by search or nearest-neighbour
// lookup, with the file it came from.
type QuestionMatch struct {
	Question
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Store wraps the SQLite database for all mcqsheet persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured fingerprint dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Run operations ---

// CreateRun records the start of a conversion.
func (s *Store) CreateRun(ctx context.Context, r Run) error {
	if r.Status == "" {
		r.Status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_path, filename, format, content_hash, converter, notation, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.SourcePath, r.Filename, r.Format, r.ContentHash, r.Converter, r.Notation, r.Status, nullIfEmpty(r.Metadata))
	return err
}

// FinishRun stores the outcome of a run: its status, the winning strategy,
// the output path, the JSON stats and the failure reason if any.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, strategy = ?, output_path = ?, stats = ?, error = ?,
			converter = COALESCE(NULLIF(?, ''), converter),
			finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, r.Status, r.Strategy, r.OutputPath, nullIfEmpty(r.Stats), nullIfEmpty(r.Error), r.Converter, r.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const runColumns = `id, source_path, filename, format, content_hash, converter, notation,
	strategy, output_path, status, stats, metadata, error, created_at, finished_at`

func scanRun(sc interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var strategy, output, stats, metadata, runErr, finished sql.NullString
	if err := sc.Scan(&r.ID, &r.SourcePath, &r.Filename, &r.Format, &r.ContentHash,
		&r.Converter, &r.Notation, &strategy, &output, &r.Status, &stats, &metadata,
		&runErr, &r.CreatedAt, &finished); err != nil {
		return nil, err
	}
	r.Strategy = strategy.String
	r.OutputPath = output.String
	r.Stats = stats.String
	r.Metadata = metadata.String
	r.Error = runErr.String
	r.FinishedAt = finished.String
	return r, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListRuns returns runs newest first. limit <= 0 returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run, its questions and their fingerprints.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_questions WHERE question_id IN (
				SELECT id FROM questions WHERE run_id = ?
			)`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE run_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
		if err != nil {
			return err
		}
		return expectRow(res)
	})
}

// --- Question operations ---

// InsertQuestions adds a run's questions in one transaction and returns
// their IDs in input order.
func (s *Store) InsertQuestions(ctx context.Context, runID string, questions []Question) ([]int64, error) {
	ids := make([]int64, 0, len(questions))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO questions (run_id, position, serial, question, topic, difficulty, board,
				options, answer, hint, explanation, is_pattern2, has_images)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, q := range questions {
			opts, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("encoding options: %w", err)
			}
			res, err := stmt.ExecContext(ctx, runID, q.Position, q.Serial, q.Question,
				q.Topic, q.Difficulty, q.Board, string(opts), q.Answer, q.Hint,
				q.Explanation, q.IsPattern2, q.HasImages)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

const questionColumns = `q.id, q.run_id, q.position, q.serial, q.question, q.topic, q.difficulty,
	q.board, q.options, q.answer, q.hint, q.explanation, q.is_pattern2, q.has_images`

func scanQuestion(sc interface{ Scan(...any) error }, extra ...any) (Question, error) {
	var q Question
	var topic, difficulty, board, answer, hint, explanation sql.NullString
	var opts string
	dest := []any{&q.ID, &q.RunID, &q.Position, &q.Serial, &q.Question, &topic, &difficulty,
		&board, &opts, &answer, &hint, &explanation, &q.IsPattern2, &q.HasImages}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return q, err
	}
	q.Topic = topic.String
	q.Difficulty = difficulty.String
	q.Board = board.String
	q.Answer = answer.String
	q.Hint = hint.String
	q.Explanation = explanation.String
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return q, fmt.Errorf("decoding options of question %d: %w", q.ID, err)
	}
	return q, nil
}

// QuestionsByRun returns a run's questions in document order.
func (s *Store) QuestionsByRun(ctx context.Context, runID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+questionColumns+" FROM questions q WHERE q.run_id = ? ORDER BY q.position", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SearchQuestions performs a full-text search using FTS5 BM25 ranking.
// Every term of the query must match; FTS syntax in the query is treated
// as plain text.
func (s *Store) SearchQuestions(ctx context.Context, query string, limit int) ([]QuestionMatch, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+questionColumns+`, r.filename, f.rank
		FROM questions_fts f
		JOIN questions q ON q.id = f.rowid
		JOIN runs r ON r.id = q.run_id
		WHERE questions_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []QuestionMatch
	for rows.Next() {
		var m QuestionMatch
		var rank float64
		q, err := scanQuestion(rows, &m.Filename, &rank)
		if err != nil {
			return nil, err
		}
		m.Question = q
		// FTS5 rank is negative (lower = better), convert to positive score
		m.Score = -rank
		results = append(results, m)
	}
	return results, rows.Err()
}

// ftsQuery quotes each whitespace-separated term so punctuation in user
// input cannot form FTS5 operators.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// --- Fingerprint operations ---

// InsertEmbedding stores a fingerprint for a question.
func (s *Store) InsertEmbedding(ctx context.Context, questionID int64, embedding []float32) error {
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.embeddingDim)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_questions (question_id, embedding) VALUES (?, ?)",
		questionID, serializeFloat32(embedding))
	return err
}

// NearestQuestions performs a KNN search returning the k stored questions
// closest to the fingerprint. Score is cosine similarity.
func (s *Store) NearestQuestions(ctx context.Context, embedding []float32, k int) ([]QuestionMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+questionColumns+`, r.filename, v.distance
		FROM vec_questions v
		JOIN questions q ON q.id = v.question_id
		JOIN runs r ON r.id = q.run_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []QuestionMatch
	for rows.Next() {
		var m QuestionMatch
		var distance float64
		q, err := scanQuestion(rows, &m.Filename, &distance)
		if err != nil {
			return nil, err
		}
		m.Question = q
		m.Score = 1.0 - distance
		results = append(results, m)
	}
	return results, rows.Err()
}

// DBStats holds row counts for the main tables.
type DBStats struct {
	Runs       int `json:"runs"`
	Questions  int `json:"questions"`
	Embeddings int `json:"embeddings"`
}

// Stats returns counts of runs, questions and fingerprints.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM runs", &stats.Runs},
		{"SELECT COUNT(*) FROM questions", &stats.Questions},
		{"SELECT COUNT(*) FROM vec_questions", &stats.Embeddings},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
