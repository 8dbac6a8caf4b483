// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Score terms.
const (
	ScoreStandard = "standard"
	ScoreLegacy   = "legacy"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver picks the rating store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreLocation is the sqlite file path or the postgres DSN.
	StoreLocation string `koanf:"store_location"`

	// CandidateBufferSize caps the precomputed duels held in memory.
	CandidateBufferSize int `koanf:"candidate_buffer_size"`

	// QueueSize bounds the in-memory match queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of match recording workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many match ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// BandWidth is k in the matchmaking band r ± k·d.
	BandWidth float64 `koanf:"band_width"`

	// SyncBatchSize is the batch selected when the buffer is empty.
	SyncBatchSize int `koanf:"sync_batch_size"`

	// DecayFactor is the per-period deviation growth. Zero disables decay.
	DecayFactor float64 `koanf:"decay_factor"`

	// DecayPeriod is the length of one decay tick.
	DecayPeriod time.Duration `koanf:"decay_period"`

	// ScoreTerm selects the rating step: standard or legacy.
	ScoreTerm string `koanf:"score_term"`

	// ImageDir, when set, is scanned at startup and players are reconciled
	// with its file names.
	ImageDir string `koanf:"image_dir"`

	// SeedPlayers preloads this many numbered players into a memory store.
	SeedPlayers int `koanf:"seed_players"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		StoreDriver:         DriverMemory,
		CandidateBufferSize: 20,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		BandWidth:           1.96,
		SyncBatchSize:       3,
		DecayPeriod:         24 * time.Hour,
		ScoreTerm:           ScoreStandard,
	}
}
