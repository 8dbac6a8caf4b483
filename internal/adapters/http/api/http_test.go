package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/duelrank/internal/adapters/http/api"
	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/app"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWith(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type mockCollection struct {
	duel      model.Duel
	duelErr   error
	recordErr error
	recorded  []model.Match
	players   []model.Player
	stats     app.Stats
}

func (m *mockCollection) NewDuel(context.Context) (model.Duel, error) {
	return m.duel, m.duelErr
}

func (m *mockCollection) RecordMatch(_ context.Context, match model.Match) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, match)
	return nil
}

func (m *mockCollection) Players(context.Context) ([]model.Player, error) {
	return m.players, nil
}

func (m *mockCollection) Stats(context.Context) (app.Stats, error) {
	return m.stats, nil
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](rec *httptest.ResponseRecorder) T {
	var v T
	So(sonnet.Unmarshal(rec.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestMatchesRoutes(t *testing.T) {
	Convey("Given a server over a mock collection", t, func() {
		mc := &mockCollection{duel: model.Duel{Home: "a.jpg", HomeID: 1, Guest: "b.jpg", GuestID: 2}}
		h := api.NewServer(mc).Routes()

		Convey("When a duel is requested", func() {
			rec := do(h, http.MethodGet, "/matches", "")

			Convey("Then the duel is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				d := decode[model.Duel](rec)
				So(d, ShouldResemble, mc.duel)
			})
		})

		Convey("When the population is too small", func() {
			mc.duelErr = repository.ErrInsufficientPopulation
			rec := do(h, http.MethodGet, "/matches", "")

			So(rec.Code, ShouldEqual, http.StatusConflict)
			So(decode[errorBody](rec).Code, ShouldEqual, "insufficient_population")
		})

		Convey("When the store is down", func() {
			mc.duelErr = errors.Join(repository.ErrStoreUnavailable, errors.New("disk gone"))
			rec := do(h, http.MethodGet, "/matches", "")

			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When a judgement is posted", func() {
			rec := do(h, http.MethodPost, "/matches", `{"id":"j-1","home_id":1,"guest_id":2,"won":1}`)

			Convey("Then it is recorded and the next duel is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(mc.recorded, ShouldHaveLength, 1)
				So(mc.recorded[0], ShouldResemble, model.Match{ID: "j-1", HomeID: 1, GuestID: 2, Outcome: model.HomeWon})
				So(decode[model.Duel](rec).HomeID, ShouldEqual, 1)
			})
		})

		Convey("When a draw is posted", func() {
			rec := do(h, http.MethodPost, "/matches", `{"home_id":1,"guest_id":2,"won":0.5}`)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(mc.recorded[0].Outcome, ShouldEqual, model.Draw)
		})

		Convey("When the body is malformed", func() {
			rec := do(h, http.MethodPost, "/matches", `{"home_id":`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorBody](rec).Code, ShouldEqual, "bad_request")
			So(mc.recorded, ShouldBeEmpty)
		})

		Convey("When the outcome is missing", func() {
			rec := do(h, http.MethodPost, "/matches", `{"home_id":1,"guest_id":2}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorBody](rec).Message, ShouldContainSubstring, "won")
		})

		Convey("When the collection rejects the match", func() {
			mc.recordErr = errors.Join(app.ErrInvalidMatch, errors.New("home and guest must differ"))
			rec := do(h, http.MethodPost, "/matches", `{"home_id":1,"guest_id":1,"won":1}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorBody](rec).Code, ShouldEqual, "invalid_match")
		})

		Convey("When the queue is full", func() {
			mc.recordErr = app.ErrBackpressure
			rec := do(h, http.MethodPost, "/matches", `{"home_id":1,"guest_id":2,"won":0}`)

			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode[errorBody](rec).Code, ShouldEqual, "backpressure")
		})

		Convey("When the collection is closed", func() {
			mc.recordErr = app.ErrClosed
			rec := do(h, http.MethodPost, "/matches", `{"home_id":1,"guest_id":2,"won":0}`)

			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the method is not routed", func() {
			rec := do(h, http.MethodDelete, "/matches", "")

			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

type playerBody struct {
	Rank      int     `json:"rank"`
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
	Deviation float64 `json:"deviation"`
}

func TestPlayersAndStatsRoutes(t *testing.T) {
	Convey("Given a server with three players", t, func() {
		mc := &mockCollection{
			players: []model.Player{
				{ID: 2, Name: "b.jpg", Rating: 2300, Deviation: 90},
				{ID: 1, Name: "a.jpg", Rating: 2200, Deviation: 120},
				{ID: 3, Name: "c.jpg", Rating: 2100, Deviation: 80},
			},
			stats: app.Stats{Players: 3, Buffered: 2, BufferCapacity: 3, Workers: 4},
		}
		h := api.NewServer(mc).Routes()

		Convey("When the leaderboard is requested", func() {
			rec := do(h, http.MethodGet, "/players", "")
			board := decode[[]playerBody](rec)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(board, ShouldHaveLength, 3)
			So(board[0], ShouldResemble, playerBody{Rank: 1, ID: 2, Name: "b.jpg", Rating: 2300, Deviation: 90})
			So(board[2].Rank, ShouldEqual, 3)
		})

		Convey("When a limit is given", func() {
			rec := do(h, http.MethodGet, "/players?limit=2", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode[[]playerBody](rec), ShouldHaveLength, 2)
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-1", "ten"} {
				rec := do(h, http.MethodGet, "/players?limit="+q, "")
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When stats are requested", func() {
			rec := do(h, http.MethodGet, "/stats", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode[app.Stats](rec), ShouldResemble, mc.stats)
		})

		Convey("When metrics are scraped", func() {
			_ = do(h, http.MethodGet, "/stats", "")
			rec := do(h, http.MethodGet, "/healthz", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "duelrank_")
		})
	})
}

func TestServerWithCollection(t *testing.T) {
	Convey("Given a server over a real collection", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithSeed(5), repository.WithPlayers("a.jpg", "b.jpg", "c.jpg", "d.jpg"))
		c, err := app.New(ctx, store, app.WithSeed(5), app.WithWorkerCount(1))
		So(err, ShouldBeNil)
		h := api.NewServer(c).Routes()
		Reset(func() { _ = c.Close(ctx) })

		Convey("When a duel is fetched and judged", func() {
			d := decode[model.Duel](do(h, http.MethodGet, "/matches", ""))
			So(d.HomeID, ShouldNotEqual, d.GuestID)

			body := `{"id":"first","home_id":` + strconv.FormatInt(d.HomeID, 10) + `,"guest_id":` + strconv.FormatInt(d.GuestID, 10) + `,"won":1}`
			rec := do(h, http.MethodPost, "/matches", body)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(c.Close(ctx), ShouldBeNil)

			Convey("Then the closed collection refuses new work", func() {
				rec := do(h, http.MethodGet, "/matches", "")
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode[errorBody](rec).Code, ShouldEqual, "closed")
			})
		})
	})
}

func TestOpenAPIRoute(t *testing.T) {
	Convey("Given the router", t, func() {
		h := api.NewServer(&mockCollection{}).Routes()
		rec := do(h, http.MethodGet, "/openapi.yaml", "")

		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Body.String(), ShouldContainSubstring, "/matches")
	})
}
