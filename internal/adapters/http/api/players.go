package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/duelrank/pkg/logger"
)

// PlayersHandler serves the leaderboard.
type PlayersHandler struct {
	c      Collection
	logger logger.Logger
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(c Collection, log logger.Logger) *PlayersHandler {
	return &PlayersHandler{c: c, logger: log}
}

type playerEntry struct {
	Rank      int     `json:"rank"`
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
	Deviation float64 `json:"deviation"`
}

// HandleGetPlayers handles GET /players?limit=N. Without limit every player
// is listed.
func (h *PlayersHandler) HandleGetPlayers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			failWith(h.logger, w, r, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}

	players, err := h.c.Players(r.Context())
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	if limit > 0 && limit < len(players) {
		players = players[:limit]
	}

	out := make([]playerEntry, len(players))
	for i, p := range players {
		out[i] = playerEntry{Rank: i + 1, ID: p.ID, Name: p.Name, Rating: p.Rating, Deviation: p.Deviation}
	}
	writeJSON(w, http.StatusOK, out)
}
