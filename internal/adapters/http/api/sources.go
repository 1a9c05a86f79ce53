package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListSources handles GET /external/sources.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Sources()
	if err != nil {
		writeError(w, r, Wrap("api.list_sources", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleFetchSource handles GET /external/sources/{id}?limit. Failures to
// reach or parse the source are reported as 502.
func (s *Server) handleFetchSource(w http.ResponseWriter, r *http.Request) {
	const op = "api.fetch_source"

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := s.deps.FetchSource(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
