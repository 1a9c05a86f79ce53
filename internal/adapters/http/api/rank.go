package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRank handles GET /users/{id}/rank. Users without attempts are not
// ranked and get 404.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.Rank(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap("api.rank", err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
