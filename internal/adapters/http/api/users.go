package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/keystride/keystride/internal/app"
)

// createUserRequest is the body of POST /users. A missing user_id gets a
// generated one.
type createUserRequest struct {
	UserID   string  `json:"user_id"`
	Username *string `json:"username" validate:"required"`
	Email    string  `json:"email" validate:"omitempty,email"`
}

type createUserResponse struct {
	OK     bool   `json:"ok"`
	UserID string `json:"user_id"`
}

// handleCreateUser handles POST /users.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_user"

	var body createUserRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.validator.Validate(body); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}

	u, err := s.deps.CreateUser(r.Context(), service.CreateUserRequest{
		UserID:   body.UserID,
		Username: *body.Username,
		Email:    body.Email,
	})
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, createUserResponse{OK: true, UserID: u.ID})
}

// handleGetUser handles GET /users/{id}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap("api.get_user", err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleProgress handles GET /users/{id}/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap("api.progress", err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleAttempts handles GET /users/{id}/attempts?pack_id&limit&offset.
func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	const op = "api.attempts"

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	page, err := s.deps.Attempts(r.Context(), chi.URLParam(r, "id"), service.AttemptQuery{
		PackID: r.URL.Query().Get("pack_id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleStreak handles GET /users/{id}/streak.
func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Streak(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap("api.streak", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleAchievements handles GET /users/{id}/achievements.
func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Achievements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap("api.achievements", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
