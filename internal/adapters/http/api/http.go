// Package api exposes a Collection over HTTP.
//
//	GET  /matches   next duel to judge
//	POST /matches   record a judged duel, answer with the next one
//	GET  /players   leaderboard
//	GET  /stats     collection counters
//	GET  /healthz   prometheus exposition
//	GET  /openapi.yaml
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/duelrank/internal/adapters/http/swagger"
	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/app"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
)

// Collection is what the handlers need from the rating core.
type Collection interface {
	NewDuel(ctx context.Context) (model.Duel, error)
	RecordMatch(ctx context.Context, m model.Match) error
	Players(ctx context.Context) ([]model.Player, error)
	Stats(ctx context.Context) (app.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	matches *MatchesHandler
	players *PlayersHandler
	stats   *StatsHandler
	health  *HealthHandler
	logger  logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(c Collection) *Server {
	log := logger.Get().Named("http")
	return &Server{
		matches: NewMatchesHandler(c, log),
		players: NewPlayersHandler(c, log),
		stats:   NewStatsHandler(c, log),
		health:  NewHealthHandler(),
		logger:  log,
	}
}

// Routes returns the router serving every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/matches", s.matches.HandleGetMatch)
	r.Post("/matches", s.matches.HandlePostMatch)
	r.Get("/players", s.players.HandleGetPlayers)
	r.Get("/stats", s.stats.HandleStats)
	r.Get("/healthz", s.health.HandleHealth)
	swagger.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = sonnet.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps domain errors to a status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, app.ErrInvalidMatch):
		return http.StatusBadRequest, "invalid_match"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrInsufficientPopulation):
		return http.StatusConflict, "insufficient_population"
	case errors.Is(err, app.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func failWith(log logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
	}
	writeError(w, status, code, err)
}
