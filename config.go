package mcqsheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/mcqsheet/dedup"
	"github.com/brunobiangulo/mcqsheet/imaging"
	"github.com/brunobiangulo/mcqsheet/notation"
	"github.com/brunobiangulo/mcqsheet/parser"
)

// Config holds all configuration for the mcqsheet engine.
type Config struct {
	// DBPath is the full path to the SQLite question bank.
	// If empty, defaults to ~/.mcqsheet/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.mcqsheet/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// DisableStore skips run history, search and duplicate detection.
	DisableStore bool `json:"disable_store" yaml:"disable_store"`

	// Converter selects how .docx becomes markup: auto, pandoc or native.
	Converter  string `json:"converter" yaml:"converter"`
	PandocPath string `json:"pandoc_path" yaml:"pandoc_path"`

	// Notation is the equation handling for the whole run: preserve or unicode.
	Notation string `json:"notation" yaml:"notation"`

	// Embedded images are scaled down to fit this box.
	MaxImageWidth  int `json:"max_image_width" yaml:"max_image_width"`
	MaxImageHeight int `json:"max_image_height" yaml:"max_image_height"`

	// WriteTables writes document tables to <output>_tables.html.
	WriteTables bool `json:"write_tables" yaml:"write_tables"`

	// QuestionIDPrefix is prepended to the serial to form QuestionID.
	QuestionIDPrefix string `json:"question_id_prefix" yaml:"question_id_prefix"`

	// Duplicate detection against the question bank
	DuplicateThreshold float64 `json:"duplicate_threshold" yaml:"duplicate_threshold"`
	EmbeddingDim       int     `json:"embedding_dim" yaml:"embedding_dim"`
}

// DefaultConfig returns a Config with sensible defaults.
// The question bank is stored in ~/.mcqsheet/mcqsheet.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:             "mcqsheet",
		StorageDir:         "home",
		Converter:          parser.ConverterAuto,
		Notation:           string(notation.ModePreserve),
		MaxImageWidth:      imaging.DefaultMaxWidth,
		MaxImageHeight:     imaging.DefaultMaxHeight,
		WriteTables:        true,
		QuestionIDPrefix:   "Q",
		DuplicateThreshold: 0.9,
		EmbeddingDim:       dedup.DefaultDim,
	}
}

// LoadConfig reads a YAML (or JSON) config file on top of the defaults and
// applies MCQSHEET_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MCQSHEET_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MCQSHEET_STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v := os.Getenv("MCQSHEET_DISABLE_STORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DisableStore = b
		}
	}
	if v := os.Getenv("MCQSHEET_CONVERTER"); v != "" {
		cfg.Converter = strings.ToLower(v)
	}
	if v := os.Getenv("MCQSHEET_PANDOC"); v != "" {
		cfg.PandocPath = v
	}
	if v := os.Getenv("MCQSHEET_NOTATION"); v != "" {
		cfg.Notation = strings.ToLower(v)
	}
	if v := os.Getenv("MCQSHEET_DUPLICATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DuplicateThreshold = f
		}
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Converter {
	case parser.ConverterAuto, parser.ConverterPandoc, parser.ConverterNative:
	default:
		return fmt.Errorf("%w: unknown converter %q", ErrInvalidConfig, c.Converter)
	}
	if _, err := notation.ParseMode(c.Notation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MaxImageWidth < 1 || c.MaxImageHeight < 1 {
		return fmt.Errorf("%w: image bounds must be positive, got %dx%d",
			ErrInvalidConfig, c.MaxImageWidth, c.MaxImageHeight)
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("%w: duplicate_threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("%w: embedding_dim must be positive", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "mcqsheet"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".mcqsheet", name+".db")
	}
}
