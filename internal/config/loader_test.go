package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/duelrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.CandidateBufferSize, convey.ShouldEqual, 20)
				convey.So(cfg.SyncBatchSize, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DUELRANK_ADDR", ":8080")
			_ = os.Setenv("DUELRANK_STORE_DRIVER", "sqlite")
			_ = os.Setenv("DUELRANK_STORE_LOCATION", "/tmp/duels.db")
			_ = os.Setenv("DUELRANK_CANDIDATE_BUFFER_SIZE", "64")
			_ = os.Setenv("DUELRANK_BAND_WIDTH", "2.5")
			_ = os.Setenv("DUELRANK_DECAY_FACTOR", "0.75")
			_ = os.Setenv("DUELRANK_DECAY_PERIOD", "1h")
			_ = os.Setenv("DUELRANK_SCORE_TERM", "legacy")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StoreLocation, convey.ShouldEqual, "/tmp/duels.db")
				convey.So(cfg.CandidateBufferSize, convey.ShouldEqual, 64)
				convey.So(cfg.BandWidth, convey.ShouldEqual, 2.5)
				convey.So(cfg.DecayFactor, convey.ShouldEqual, 0.75)
				convey.So(cfg.DecayPeriod, convey.ShouldEqual, time.Hour)
				convey.So(cfg.ScoreTerm, convey.ShouldEqual, config.ScoreLegacy)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
queue_size: 300
worker_count: 6
image_dir: /srv/images
seed_players: 40
`)
			_ = os.Setenv("DUELRANK_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
				convey.So(cfg.ImageDir, convey.ShouldEqual, "/srv/images")
				convey.So(cfg.SeedPlayers, convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, "addr: \":9090\"\nqueue_size: 300\n")
			_ = os.Setenv("DUELRANK_CONFIG", tmpFile)
			_ = os.Setenv("DUELRANK_QUEUE_SIZE", "500")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, "addr: [unclosed\n")
			_ = os.Setenv("DUELRANK_CONFIG", tmpFile)

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("DUELRANK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			tmpFile := createTempConfigFile(t, "addr: \"\"\n")
			_ = os.Setenv("DUELRANK_CONFIG", tmpFile)

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("DUELRANK_QUEUE_SIZE", "lots")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a .env file is present", func() {
			dir := t.TempDir()
			content := "DUELRANK_ADDR=:7070\nDUELRANK_SYNC_BATCH_SIZE=5\n"
			convey.So(os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("DUELRANK_SYNC_BATCH_SIZE", "7")
			t.Chdir(dir)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values fill unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.SyncBatchSize, convey.ShouldEqual, 7)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "mysql" }, "store_driver"},
			{"sqlite without location", func(c *config.Config) { c.StoreDriver = config.DriverSQLite }, "store_location"},
			{"zero buffer", func(c *config.Config) { c.CandidateBufferSize = 0 }, "candidate_buffer_size"},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }, "queue_size"},
			{"zero sync batch", func(c *config.Config) { c.SyncBatchSize = 0 }, "sync_batch_size"},
			{"negative band", func(c *config.Config) { c.BandWidth = -1 }, "band_width"},
			{"negative decay", func(c *config.Config) { c.DecayFactor = -0.1 }, "decay_factor"},
			{"zero decay period", func(c *config.Config) { c.DecayPeriod = 0 }, "decay_period"},
			{"unknown score term", func(c *config.Config) { c.ScoreTerm = "glicko2" }, "score_term"},
			{"negative seed", func(c *config.Config) { c.SeedPlayers = -3 }, "seed_players"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
			})
		}

		convey.Convey("When several fields are wrong", func() {
			cfg.Addr = ""
			cfg.QueueSize = -1
			err := cfg.Validate()

			convey.So(strings.Contains(err.Error(), "addr"), convey.ShouldBeTrue)
			convey.So(strings.Contains(err.Error(), "queue_size"), convey.ShouldBeTrue)
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "DUELRANK_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
