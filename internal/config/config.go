// Package config loads ledger settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Ingest    IngestConfig    `toml:"ingest"`
	Archive   ArchiveConfig   `toml:"archive"`
	Warehouse WarehouseConfig `toml:"warehouse"`
	Notion    NotionConfig    `toml:"notion"`
	Model     ModelConfig     `toml:"model"`
	Summary   SummaryConfig   `toml:"summary"`
	Jobs      JobsConfig      `toml:"jobs"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
	IdleTimeout    Duration `toml:"idle_timeout"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
	Metrics        bool     `toml:"metrics"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// IngestConfig selects the upload-time classifier: "keywords", "rules" or "chain".
type IngestConfig struct {
	Classifier string `toml:"classifier"`
}

// ArchiveConfig enables raw upload archiving to a GCS bucket when Bucket is set.
type ArchiveConfig struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

type WarehouseConfig struct {
	Enabled   bool   `toml:"enabled"`
	ProjectID string `toml:"project_id"`
	Dataset   string `toml:"dataset"`
	Table     string `toml:"table"`
}

type NotionConfig struct {
	Enabled    bool   `toml:"enabled"`
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
}

// ModelConfig enables the Gemini fallback for PDFs the tokenizer cannot read.
type ModelConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
}

type SummaryConfig struct {
	Days      int    `toml:"days"`
	PayeeUPI  string `toml:"payee_upi"`
	PayeeName string `toml:"payee_name"`
}

type JobsConfig struct {
	Workers    int `toml:"workers"`
	BufferSize int `toml:"buffer_size"`
	MaxRetries int `toml:"max_retries"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration decoded from strings like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    Duration{15 * time.Second},
			WriteTimeout:   Duration{60 * time.Second},
			IdleTimeout:    Duration{60 * time.Second},
			MaxUploadBytes: 20 << 20,
			Metrics:        true,
		},
		Database: DatabaseConfig{Path: "data/ledger.db"},
		Ingest:   IngestConfig{Classifier: "keywords"},
		Archive:  ArchiveConfig{Prefix: "uploads"},
		Warehouse: WarehouseConfig{
			Dataset: "ledger",
			Table:   "transactions",
		},
		Model: ModelConfig{Name: "gemini-2.5-flash"},
		Summary: SummaryConfig{
			Days:      7,
			PayeeUPI:  "friend@upi",
			PayeeName: "Friend",
		},
		Jobs: JobsConfig{
			Workers:    2,
			BufferSize: 100,
			MaxRetries: 3,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path over DefaultConfig and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("Load: decode %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode parses TOML text over DefaultConfig without touching the environment.
func Decode(text string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return cfg, fmt.Errorf("Decode: %w", err)
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEDGER_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LEDGER_GCS_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" && cfg.Warehouse.ProjectID == "" {
		cfg.Warehouse.ProjectID = v
	}
	if v := os.Getenv("NOTION_TOKEN"); v != "" {
		cfg.Notion.Token = v
	}
	if v := os.Getenv("NOTION_DATABASE_ID"); v != "" {
		cfg.Notion.DatabaseID = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Ingest.Classifier {
	case "keywords", "rules", "chain":
	default:
		return fmt.Errorf("config: ingest.classifier %q is not one of keywords, rules, chain", c.Ingest.Classifier)
	}
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("config: server.max_upload_bytes must be positive")
	}
	if c.Summary.Days <= 0 {
		return errors.New("config: summary.days must be positive")
	}
	if c.Jobs.Workers <= 0 || c.Jobs.BufferSize <= 0 {
		return errors.New("config: jobs.workers and jobs.buffer_size must be positive")
	}
	if c.Warehouse.Enabled && c.Warehouse.ProjectID == "" {
		return errors.New("config: warehouse.project_id is required when the warehouse is enabled")
	}
	if c.Notion.Enabled && (c.Notion.Token == "" || c.Notion.DatabaseID == "") {
		return errors.New("config: notion.token and notion.database_id are required when notion is enabled")
	}
	return nil
}
