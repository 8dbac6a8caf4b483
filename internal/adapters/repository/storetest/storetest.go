// Package storetest is a behavioural suite every repository.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// Opener returns an empty store. It is called once per leaf scenario.
type Opener func(t *testing.T) repository.Store

var errAbort = errors.New("abort")

func ids(ps []model.Player) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func byName(t *testing.T, s repository.Store, name string) model.Player {
	t.Helper()
	ps, err := s.ListPlayers(context.Background())
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, p := range ps {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("player %q missing", name)
	return model.Player{}
}

func rate(ctx context.Context, s repository.Store, id int64, rating, dev float64, at time.Time) error {
	return s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.ApplyRatingUpdate(ctx, id, rating, dev, at)
	})
}

// Run exercises the Store contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	if err := logger.InitWith(io.Discard, "text"); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0).UTC()

	Convey("Given an empty store", t, func() {
		s := open(t)
		Reset(func() { _ = s.Close() })

		Convey("Then it reports an empty population", func() {
			n, err := s.PlayerCount(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)

			_, err = s.SampleUniform(ctx, 0)
			So(errors.Is(err, repository.ErrInsufficientPopulation), ShouldBeTrue)

			ps, err := s.ListByDeviationDesc(ctx, 5)
			So(err, ShouldBeNil)
			So(ps, ShouldBeEmpty)

			_, err = s.GetPlayer(ctx, 1)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When three players are added", func() {
			added, err := s.AddPlayers(ctx, "a.png", "b.png", "c.png")
			So(err, ShouldBeNil)
			So(added, ShouldHaveLength, 3)

			a := byName(t, s, "a.png")
			b := byName(t, s, "b.png")
			c := byName(t, s, "c.png")

			Convey("Then they start at the initial rating", func() {
				for _, p := range added {
					So(p.ID, ShouldBeGreaterThan, 0)
					So(p.Rating, ShouldEqual, model.InitialRating)
					So(p.Deviation, ShouldEqual, model.InitialDeviation)
				}
				So(a.ID, ShouldNotEqual, b.ID)
				So(b.ID, ShouldNotEqual, c.ID)
			})

			Convey("Then adding an existing name is a no-op", func() {
				again, err := s.AddPlayers(ctx, "a.png")
				So(err, ShouldBeNil)
				So(again, ShouldBeEmpty)
				n, _ := s.PlayerCount(ctx)
				So(n, ShouldEqual, 3)
			})

			Convey("Then equal deviations are ordered by id", func() {
				ps, err := s.ListByDeviationDesc(ctx, 3)
				So(err, ShouldBeNil)
				So(ids(ps), ShouldResemble, []int64{a.ID, b.ID, c.ID})

				top, err := s.ListByDeviationDesc(ctx, 2)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
			})

			Convey("When ratings are updated in a transaction", func() {
				So(rate(ctx, s, a.ID, 2300, 100, at), ShouldBeNil)
				So(rate(ctx, s, b.ID, 2100, 200, at), ShouldBeNil)

				Convey("Then reads reflect the update", func() {
					got, err := s.GetPlayer(ctx, a.ID)
					So(err, ShouldBeNil)
					So(got.Rating, ShouldEqual, 2300)
					So(got.Deviation, ShouldEqual, 100)
					So(got.UpdatedAt.Equal(at), ShouldBeTrue)
				})

				Convey("Then the deviation order follows", func() {
					ps, err := s.ListByDeviationDesc(ctx, 3)
					So(err, ShouldBeNil)
					So(ids(ps), ShouldResemble, []int64{c.ID, b.ID, a.ID})
				})

				Convey("Then the leaderboard is ordered by rating", func() {
					ps, err := s.ListPlayers(ctx)
					So(err, ShouldBeNil)
					So(ids(ps), ShouldResemble, []int64{a.ID, c.ID, b.ID})
				})

				Convey("Then band queries honour bounds and the exclusion", func() {
					ps, err := s.ListInBand(ctx, c.ID, 2150, 2350)
					So(err, ShouldBeNil)
					So(ids(ps), ShouldResemble, []int64{a.ID})

					ps, err = s.ListInBand(ctx, a.ID, 2000, 2400)
					So(err, ShouldBeNil)
					So(ids(ps), ShouldHaveLength, 2)
					So(ids(ps), ShouldContain, b.ID)
					So(ids(ps), ShouldContain, c.ID)

					ps, err = s.ListInBand(ctx, a.ID, 2100, 2100)
					So(err, ShouldBeNil)
					So(ids(ps), ShouldResemble, []int64{b.ID})
				})
			})

			Convey("Then uniform sampling never returns the excluded player", func() {
				seen := map[int64]bool{}
				for range 60 {
					p, err := s.SampleUniform(ctx, a.ID)
					So(err, ShouldBeNil)
					So(p.ID, ShouldNotEqual, a.ID)
					seen[p.ID] = true
				}
				So(len(seen), ShouldBeLessThanOrEqualTo, 2)
			})

			Convey("When a transaction fails", func() {
				err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
					if err := tx.ApplyRatingUpdate(ctx, a.ID, 1000, 10, at); err != nil {
						return err
					}
					return errAbort
				})

				Convey("Then its writes are rolled back", func() {
					So(errors.Is(err, errAbort), ShouldBeTrue)
					got, err := s.GetPlayer(ctx, a.ID)
					So(err, ShouldBeNil)
					So(got.Rating, ShouldEqual, model.InitialRating)
					So(got.Deviation, ShouldEqual, model.InitialDeviation)
				})
			})

			Convey("When a transaction reads its own write", func() {
				var seen model.Player
				err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
					if err := tx.ApplyRatingUpdate(ctx, a.ID, 2250, 300, at); err != nil {
						return err
					}
					var err error
					seen, err = tx.GetPlayer(ctx, a.ID)
					return err
				})
				So(err, ShouldBeNil)
				So(seen.Rating, ShouldEqual, 2250)
			})

			Convey("When updating an unknown player", func() {
				err := rate(ctx, s, 9999, 2000, 100, at)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("When matches are appended", func() {
				appendMatch := func(id string) error {
					return s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
						if err := tx.ApplyRatingUpdate(ctx, b.ID, 2400, 90, at); err != nil {
							return err
						}
						return tx.AppendMatch(ctx, model.Match{ID: id, HomeID: a.ID, GuestID: b.ID, Outcome: model.HomeLost, PlayedAt: at})
					})
				}
				So(appendMatch("m-1"), ShouldBeNil)
				So(appendMatch(""), ShouldBeNil)
				So(appendMatch(""), ShouldBeNil)

				Convey("Then a repeated id is refused and rolled back", func() {
					So(rate(ctx, s, b.ID, 2200, 350, at), ShouldBeNil)
					err := appendMatch("m-1")
					So(errors.Is(err, repository.ErrDuplicateMatch), ShouldBeTrue)

					got, _ := s.GetPlayer(ctx, b.ID)
					So(got.Rating, ShouldEqual, 2200)

					n, err := s.MatchCount(ctx)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 3)
				})
			})

			Convey("When players are removed", func() {
				n, err := s.RemovePlayers(ctx, "b.png", "missing.png")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				count, _ := s.PlayerCount(ctx)
				So(count, ShouldEqual, 2)
				_, err = s.GetPlayer(ctx, b.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("When the population is reconciled", func() {
				added, removed, err := repository.Reconcile(ctx, s, []string{"a.png", "c.png", "d.png"})

				Convey("Then vanished names go and new names arrive", func() {
					So(err, ShouldBeNil)
					So(added, ShouldEqual, 1)
					So(removed, ShouldEqual, 1)

					ps, _ := s.ListPlayers(ctx)
					names := make([]string, 0, len(ps))
					for _, p := range ps {
						names = append(names, p.Name)
					}
					So(names, ShouldHaveLength, 3)
					So(names, ShouldContain, "d.png")
					So(names, ShouldNotContain, "b.png")
				})
			})
		})

		Convey("When only one player exists", func() {
			added, err := s.AddPlayers(ctx, "solo.png")
			So(err, ShouldBeNil)

			_, err = s.SampleUniform(ctx, added[0].ID)
			So(errors.Is(err, repository.ErrInsufficientPopulation), ShouldBeTrue)

			p, err := s.SampleUniform(ctx, 0)
			So(err, ShouldBeNil)
			So(p.ID, ShouldEqual, added[0].ID)
		})
	})
}
