package api

import (
	"github.com/keystride/keystride/internal/ratelimit"
	"github.com/keystride/keystride/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithSubmitLimiter throttles POST /attempts per user.
func WithSubmitLimiter(l *ratelimit.KeyedRateLimiter) Option {
	return func(s *Server) { s.submitLimiter = l }
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}
