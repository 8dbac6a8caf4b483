package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/duelrank/internal/config"
	"github.com/okian/duelrank/internal/domain/glicko"
	"github.com/okian/duelrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWith(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestScanImages(t *testing.T) {
	convey.Convey("Given an image directory", t, func() {
		dir := t.TempDir()
		for _, name := range []string{"b.png", "a.jpg", ".DS_Store"} {
			convey.So(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600), convey.ShouldBeNil)
		}
		convey.So(os.Mkdir(filepath.Join(dir, "thumbs"), 0o750), convey.ShouldBeNil)

		convey.Convey("When it is scanned", func() {
			names, err := scanImages(dir)

			convey.Convey("Then regular visible files are listed in order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(names, convey.ShouldResemble, []string{"a.jpg", "b.png"})
			})
		})

		convey.Convey("When the directory does not exist", func() {
			_, err := scanImages(filepath.Join(dir, "missing"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given store configurations", t, func() {
		ctx := context.Background()

		convey.Convey("When a seeded memory store is opened", func() {
			cfg := config.New()
			cfg.SeedPlayers = 12
			s, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = s.Close() }()

			n, err := s.PlayerCount(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 12)
		})

		convey.Convey("When a sqlite store is opened", func() {
			cfg := config.New()
			cfg.StoreDriver = config.DriverSQLite
			cfg.StoreLocation = filepath.Join(t.TempDir(), "duels.db")
			s, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = s.Close() }()

			n, err := s.PlayerCount(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 0)
		})

		convey.Convey("When the driver is unknown", func() {
			cfg := config.New()
			cfg.StoreDriver = "mysql"
			_, err := openStore(ctx, cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestCollectionOptions(t *testing.T) {
	convey.Convey("Given score term names", t, func() {
		convey.So(scoreTerm(config.ScoreLegacy), convey.ShouldEqual, glicko.LegacyScore)
		convey.So(scoreTerm(config.ScoreStandard), convey.ShouldEqual, glicko.StandardScore)
		convey.So(collectionOptions(config.New(), logger.Get()), convey.ShouldHaveLength, 9)
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a config pointing at an image directory", t, func() {
		dir := t.TempDir()
		for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
			convey.So(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600), convey.ShouldBeNil)
		}
		_ = os.Setenv("DUELRANK_ADDR", "127.0.0.1:0")
		_ = os.Setenv("DUELRANK_IMAGE_DIR", dir)
		_ = os.Setenv("DUELRANK_WORKER_COUNT", "2")
		defer func() {
			_ = os.Unsetenv("DUELRANK_ADDR")
			_ = os.Unsetenv("DUELRANK_IMAGE_DIR")
			_ = os.Unsetenv("DUELRANK_WORKER_COUNT")
		}()

		convey.Convey("When the process is interrupted", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			err := run(ctx)

			convey.Convey("Then it shuts down cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the image directory is missing", func() {
			_ = os.Setenv("DUELRANK_IMAGE_DIR", filepath.Join(dir, "gone"))
			err := run(context.Background())

			convey.Convey("Then startup fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
