package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			var buf bytes.Buffer
			err := InitWith(&buf, "xml")

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, "json"), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "duel served", String("home", "a.png"), Int64("home_id", 7))

			Convey("Then the fields and caller are present", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, `"msg":"duel served"`)
				So(out, ShouldContainSubstring, `"home":"a.png"`)
				So(out, ShouldContainSubstring, `"home_id":7`)
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When using a named child logger", func() {
			Named("matchmaker").With(Int("batch", 3)).Warn(ctx, "band empty", Error(errors.New("boom")))

			Convey("Then component and bound fields are carried", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, `"component":"matchmaker"`)
				So(out, ShouldContainSubstring, `"batch":3`)
				So(out, ShouldContainSubstring, `"error":"boom"`)
			})
		})

		Convey("When the level filters a message", func() {
			So(SetLevelString("error"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Debug(ctx, "hidden")
			Get().Info(ctx, "hidden too")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		_ = SetLevelString("info")
	})
}
