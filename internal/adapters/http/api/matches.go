package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
)

// MatchesHandler serves duels and accepts judgements.
type MatchesHandler struct {
	c      Collection
	logger logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(c Collection, log logger.Logger) *MatchesHandler {
	return &MatchesHandler{c: c, logger: log}
}

// matchRequest is the body of POST /matches. won is the home side's score.
type matchRequest struct {
	ID      string   `json:"id"`
	HomeID  int64    `json:"home_id"`
	GuestID int64    `json:"guest_id"`
	Won     *float64 `json:"won"`
}

func (m matchRequest) toMatch() (model.Match, error) {
	if m.Won == nil {
		return model.Match{}, errors.New("missing won")
	}
	return model.Match{
		ID:      m.ID,
		HomeID:  m.HomeID,
		GuestID: m.GuestID,
		Outcome: model.Outcome(*m.Won),
	}, nil
}

// HandleGetMatch handles GET /matches.
func (h *MatchesHandler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	d, err := h.c.NewDuel(r.Context())
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandlePostMatch handles POST /matches. The match is queued and the
// response carries the next duel.
func (h *MatchesHandler) HandlePostMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := sonnet.NewDecoder(r.Body).Decode(&req); err != nil {
		failWith(h.logger, w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	m, err := req.toMatch()
	if err != nil {
		failWith(h.logger, w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := h.c.RecordMatch(r.Context(), m); err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	h.HandleGetMatch(w, r)
}
