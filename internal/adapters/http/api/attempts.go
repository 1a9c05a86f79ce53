package api

import (
	"net/http"

	service "github.com/keystride/keystride/internal/app"
	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/pkg/metrics"
)

// attemptRequest is the body of POST /attempts. Pointers tell a missing
// field apart from an empty one; empty texts are accepted.
type attemptRequest struct {
	SubmissionID string   `json:"submission_id"`
	UserID       *string  `json:"user_id" validate:"required"`
	ItemID       *string  `json:"item_id" validate:"required"`
	PackID       *string  `json:"pack_id"`
	Lang         *string  `json:"lang" validate:"required"`
	TypedText    *string  `json:"typed_text" validate:"required"`
	TargetText   *string  `json:"target_text" validate:"required"`
	DurationMS   *float64 `json:"duration_ms" validate:"required"`
}

func (a attemptRequest) toSubmit() service.SubmitRequest {
	req := service.SubmitRequest{
		SubmissionID: a.SubmissionID,
		UserID:       *a.UserID,
		ItemID:       *a.ItemID,
		Lang:         *a.Lang,
		TypedText:    *a.TypedText,
		TargetText:   *a.TargetText,
		DurationMS:   int64(*a.DurationMS),
	}
	if a.PackID != nil {
		req.PackID = *a.PackID
	}
	return req
}

// handleSubmitAttempt handles POST /attempts.
func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_attempt"

	var body attemptRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.validator.Validate(body); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}

	req := body.toSubmit()
	if s.submitLimiter != nil && !s.submitLimiter.Allow(req.UserID) {
		metrics.RecordRateLimited("submit")
		writeError(w, r, NewKind(op, ErrRateLimited))
		return
	}

	res, err := s.deps.SubmitAttempt(r.Context(), req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// computeRequest is the body of POST /metrics/compute.
type computeRequest struct {
	Lang       string   `json:"lang"`
	TypedText  *string  `json:"typed_text" validate:"required"`
	TargetText *string  `json:"target_text" validate:"required"`
	DurationMS *float64 `json:"duration_ms" validate:"required"`
}

// handleComputeMetrics handles POST /metrics/compute. Nothing is stored.
func (s *Server) handleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.compute_metrics"

	var body computeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.validator.Validate(body); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}

	m := s.deps.ComputeMetrics(typing.Input{
		Lang:       body.Lang,
		TypedText:  *body.TypedText,
		TargetText: *body.TargetText,
		DurationMS: int64(*body.DurationMS),
	})
	writeJSON(w, http.StatusOK, m)
}
