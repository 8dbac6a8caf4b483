package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "DUELRANK_"
	envFileKey = "DUELRANK_CONFIG"
	dotEnvFile = ".env"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DUELRANK_CONFIG is set
//  3. env (prefix DUELRANK_)
//
// A .env file in the working directory is read into the environment first.
// Variables already set win over it.
func Load(_ context.Context) (*Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, dotEnvFile, err)
	}

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envFileKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// DUELRANK_QUEUE_SIZE -> queue_size; underscores are kept to match the
	// flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreLocation == "" {
			errs = append(errs, fmt.Errorf("store_location is required for %s", c.StoreDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store_driver %q", c.StoreDriver))
	}
	if c.CandidateBufferSize < 1 {
		errs = append(errs, errors.New("candidate_buffer_size must be positive"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("queue_size must be positive"))
	}
	if c.SyncBatchSize < 1 {
		errs = append(errs, errors.New("sync_batch_size must be positive"))
	}
	if c.BandWidth <= 0 {
		errs = append(errs, errors.New("band_width must be positive"))
	}
	if c.DecayFactor < 0 {
		errs = append(errs, errors.New("decay_factor must not be negative"))
	}
	if c.DecayPeriod <= 0 {
		errs = append(errs, errors.New("decay_period must be positive"))
	}
	if c.ScoreTerm != ScoreStandard && c.ScoreTerm != ScoreLegacy {
		errs = append(errs, fmt.Errorf("unknown score_term %q", c.ScoreTerm))
	}
	if c.SeedPlayers < 0 {
		errs = append(errs, errors.New("seed_players must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
