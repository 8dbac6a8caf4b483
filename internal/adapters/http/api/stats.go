package api

import (
	"net/http"

	"github.com/okian/duelrank/pkg/logger"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	c      Collection
	logger logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(c Collection, log logger.Logger) *StatsHandler {
	return &StatsHandler{c: c, logger: log}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.c.Stats(r.Context())
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
