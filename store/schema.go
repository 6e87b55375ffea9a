package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- One row per conversion run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source_path TEXT NOT NULL,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    converter TEXT NOT NULL,
    notation TEXT NOT NULL,
    strategy TEXT,
    output_path TEXT,
    status TEXT DEFAULT 'running',
    stats JSON,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

-- Question bank: every record a run exported
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    serial TEXT NOT NULL,
    question TEXT NOT NULL,
    topic TEXT,
    difficulty TEXT,
    board TEXT,
    options JSON NOT NULL,
    answer TEXT,
    hint TEXT,
    explanation TEXT,
    is_pattern2 INTEGER DEFAULT 0,
    has_images INTEGER DEFAULT 0
);

-- Question fingerprints via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_questions USING vec0(
    question_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Full-text search via FTS5. Combining marks are token characters so
-- Bengali words are not split at vowel signs.
CREATE VIRTUAL TABLE IF NOT EXISTS questions_fts USING fts5(
    question,
    topic,
    options,
    content='questions',
    content_rowid='id',
    tokenize="unicode61 categories 'L* N* Co M*'"
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS questions_ai AFTER INSERT ON questions BEGIN
    INSERT INTO questions_fts(rowid, question, topic, options) VALUES (new.id, new.question, new.topic, new.options);
END;
CREATE TRIGGER IF NOT EXISTS questions_ad AFTER DELETE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, question, topic, options) VALUES ('delete', old.id, old.question, old.topic, old.options);
END;
CREATE TRIGGER IF NOT EXISTS questions_au AFTER UPDATE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, question, topic, options) VALUES ('delete', old.id, old.question, old.topic, old.options);
    INSERT INTO questions_fts(rowid, question, topic, options) VALUES (new.id, new.question, new.topic, new.options);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_questions_run ON questions(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(content_hash);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`, embeddingDim)
}
