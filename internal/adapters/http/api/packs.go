package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keystride/keystride/internal/adapters/packs"
)

// handleListPacks handles GET /packs?lang&topic.
func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.deps.Packs(r.Context(), packs.Filter{Lang: q.Get("lang"), Topic: q.Get("topic")})
	if err != nil {
		writeError(w, r, Wrap("api.list_packs", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handlePackItems handles GET /packs/{id}/items?offset&limit&tag.
func (s *Server) handlePackItems(w http.ResponseWriter, r *http.Request) {
	const op = "api.pack_items"

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	page, err := s.deps.PackItems(r.Context(), chi.URLParam(r, "id"), packs.ItemQuery{
		Offset: offset,
		Limit:  limit,
		Tag:    r.URL.Query().Get("tag"),
	})
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}
