package sources

import (
	"net/http"
	"time"

	"github.com/keystride/keystride/pkg/logger"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithCustomFile sets the JSON file holding extra source definitions.
func WithCustomFile(path string) Option {
	return func(r *Registry) {
		r.customPath = path
	}
}

// WithTimeout sets the per-request timeout for outbound fetches.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRateLimit limits outbound fetches per source id.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Registry) {
		r.rps = rps
		r.burst = burst
	}
}

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}
