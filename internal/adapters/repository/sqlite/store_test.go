package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/adapters/repository/sqlite"
	"github.com/okian/duelrank/internal/adapters/repository/storetest"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		s, err := sqlite.Open(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return s
	})
}

func TestStorePersists(t *testing.T) {
	Convey("Given a database file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "ratings.db")

		s, err := sqlite.Open(ctx, path)
		So(err, ShouldBeNil)
		added, err := s.AddPlayers(ctx, "a.png", "b.png")
		So(err, ShouldBeNil)
		So(added, ShouldHaveLength, 2)
		So(s.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			s, err := sqlite.Open(ctx, path)
			So(err, ShouldBeNil)
			defer s.Close()

			Convey("Then the population survived", func() {
				n, err := s.PlayerCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})
}
