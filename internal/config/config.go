// Package config defines service configuration and its loading.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. Parent directories are created.
	DBPath string `koanf:"db_path"`

	// PacksDir holds one directory per practice pack.
	PacksDir string `koanf:"packs_dir"`

	// SourcesFile optionally adds external sources from a JSON array.
	SourcesFile string `koanf:"sources_file"`

	// WatchPacks reloads pack metadata when files under PacksDir change.
	WatchPacks bool `koanf:"watch_packs"`

	// QueueSize bounds the in-memory attempt event queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of attempt event workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the submission id cache. Zero or less is unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxAttemptsLimit caps GET /users/{id}/attempts?limit.
	MaxAttemptsLimit int `koanf:"max_attempts_limit"`

	// MaxItemsLimit caps GET /packs/{id}/items?limit.
	MaxItemsLimit int `koanf:"max_items_limit"`

	// SourceTimeoutMS bounds a single external source fetch.
	SourceTimeoutMS int `koanf:"source_timeout_ms"`

	// SourceRPS and SourceBurst rate-limit outbound fetches per source.
	SourceRPS   float64 `koanf:"source_rps"`
	SourceBurst int     `koanf:"source_burst"`

	// SubmitRPS and SubmitBurst rate-limit POST /attempts per user.
	// A non-positive rate disables limiting.
	SubmitRPS   float64 `koanf:"submit_rps"`
	SubmitBurst int     `koanf:"submit_burst"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// SeedDemoUser creates the demo user at startup.
	SeedDemoUser bool `koanf:"seed_demo_user"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8000",
		DBPath:           "data/typing.db",
		PacksDir:         "packs",
		SourcesFile:      "data/external_sources.json",
		WatchPacks:       true,
		QueueSize:        1024,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		MaxAttemptsLimit: 1000,
		MaxItemsLimit:    500,
		SourceTimeoutMS:  15_000,
		SourceRPS:        1,
		SourceBurst:      3,
		SubmitRPS:        10,
		SubmitBurst:      20,
		CORSOrigins:      []string{"*"},
		SeedDemoUser:     true,
	}
}
