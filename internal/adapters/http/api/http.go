// Package api exposes the typing service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/keystride/keystride/internal/adapters/packs"
	"github.com/keystride/keystride/internal/adapters/repository"
	"github.com/keystride/keystride/internal/adapters/sources"
	service "github.com/keystride/keystride/internal/app"
	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/internal/ratelimit"
	"github.com/keystride/keystride/internal/validation"
	"github.com/keystride/keystride/pkg/logger"
	"github.com/keystride/keystride/pkg/metrics"
)

const (
	maxBodyBytes = 1 << 20
	corsMaxAge   = 300
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	SubmitAttempt(ctx context.Context, req service.SubmitRequest) (service.SubmitResult, error)
	ComputeMetrics(in typing.Input) typing.Metrics

	CreateUser(ctx context.Context, req service.CreateUserRequest) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	Progress(ctx context.Context, userID string) (service.ProgressReport, error)
	Attempts(ctx context.Context, userID string, q service.AttemptQuery) (service.AttemptsPage, error)
	Streak(ctx context.Context, userID string) (model.Streak, error)
	Achievements(ctx context.Context, userID string) (service.AchievementsReport, error)
	Subscribe(userID string) (<-chan model.AttemptEvent, func(), error)

	Packs(ctx context.Context, f packs.Filter) ([]model.Pack, error)
	PackItems(ctx context.Context, packID string, q packs.ItemQuery) (service.ItemsPage, error)
	Sources() ([]sources.Source, error)
	FetchSource(ctx context.Context, id string, limit int) (sources.Result, error)

	Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (repository.LeaderboardEntry, error)

	GetStats(ctx context.Context) service.Stats
	Ready(ctx context.Context) error
}

// Server wires HTTP routes for the typing API.
type Server struct {
	deps          Dependencies
	router        chi.Router
	validator     *validation.Validator
	submitLimiter *ratelimit.KeyedRateLimiter
	corsOrigins   []string
	upgrader      websocket.Upgrader
	logger        logger.Logger
}

// NewServer creates the API server with every route registered.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		router:      chi.NewRouter(),
		validator:   validation.New(),
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("http")
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Router returns the underlying router so other packages can mount routes.
func (s *Server) Router() chi.Router { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", metricsHandler())

	r.Post("/attempts", s.handleSubmitAttempt)
	r.Post("/metrics/compute", s.handleComputeMetrics)

	r.Route("/packs", func(r chi.Router) {
		r.Get("/", s.handleListPacks)
		r.Get("/{id}/items", s.handlePackItems)
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/{id}", s.handleGetUser)
		r.Get("/{id}/progress", s.handleProgress)
		r.Get("/{id}/attempts", s.handleAttempts)
		r.Get("/{id}/streak", s.handleStreak)
		r.Get("/{id}/achievements", s.handleAchievements)
		r.Get("/{id}/rank", s.handleRank)
		r.Get("/{id}/feed", s.handleFeed)
	})

	r.Get("/leaderboard", s.handleLeaderboard)

	r.Route("/external/sources", func(r chi.Router) {
		r.Get("/", s.handleListSources)
		r.Get("/{id}", s.handleFetchSource)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, NewKind("api.route", ErrRouteNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: codeBadRequest, Message: "method not allowed"})
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err, records it and writes the JSON error body.
// Server-side failures are logged; their detail is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Named("http").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
		msg = http.StatusText(status)
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		msg = verr.Error()
	}
	metrics.RecordHTTPError(routePattern(r), r.Method, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a JSON object body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.corsOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

type rootResponse struct {
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
}

var endpoints = []string{
	"/packs",
	"/packs/{id}/items",
	"/attempts",
	"/metrics/compute",
	"/users",
	"/users/{id}",
	"/users/{id}/progress",
	"/users/{id}/attempts",
	"/users/{id}/streak",
	"/users/{id}/achievements",
	"/users/{id}/rank",
	"/users/{id}/feed",
	"/leaderboard",
	"/external/sources",
	"/external/sources/{id}",
	"/stats",
	"/healthz",
	"/metrics",
	"/openapi.yaml",
}

// handleRoot handles GET / with a status and the endpoint list.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Status: "ok", Endpoints: endpoints})
}
