package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/duelrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a match id is new", func() {
			seen := d.SeenAndRecord(ctx, "match-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a retry is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "match-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a recorded id is unrecorded", func() {
			d.SeenAndRecord(ctx, "match-1")
			d.Unrecord(ctx, "match-1")
			d.Unrecord(ctx, "never-seen")

			Convey("Then it can be submitted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "match-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"m1", "m2", "m3", "m4"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("Then the oldest id was forgotten", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "m4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "m3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "m1"), ShouldBeFalse)
		})

		Convey("When an id is unrecorded and recorded again", func() {
			d.Unrecord(ctx, "m2")
			So(d.SeenAndRecord(ctx, "m2"), ShouldBeFalse)

			Convey("Then its stale slot does not evict the fresh record", func() {
				// m3 then m4 are evicted; the old m2 slot was already overwritten first
				d.SeenAndRecord(ctx, "m5")
				d.SeenAndRecord(ctx, "m6")
				So(d.SeenAndRecord(ctx, "m2"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		for _, size := range []int{0, -1} {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(size))
			for i := range 1000 {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("match-%d", i)), ShouldBeFalse)
			}
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "match-0"), ShouldBeTrue)
		}
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many submitters", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10000))

		const goroutines = 10
		const perGoroutine = 200

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		// every goroutine submits the same ids; each id must be new exactly once
		for range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range perGoroutine {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("match-%d", j)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		So(fresh, ShouldEqual, perGoroutine)
		So(d.Size(), ShouldEqual, perGoroutine)
	})
}
