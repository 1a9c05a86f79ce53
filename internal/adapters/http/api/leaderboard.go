package api

import (
	"fmt"
	"net/http"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// handleLeaderboard handles GET /leaderboard?limit=N.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard"

	n, err := queryInt(r, "limit", defaultLeaderboardLimit)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if n < 1 || n > maxLeaderboardLimit {
		writeError(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be between 1 and %d", maxLeaderboardLimit)))
		return
	}

	entries, err := s.deps.Leaderboard(r.Context(), n)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
