package service

import (
	"time"

	"github.com/keystride/keystride/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database file.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithPacksDir sets the directory holding practice packs.
func WithPacksDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.packsDir = dir
		}
	}
}

// WithWatchPacks reloads pack metadata on file changes.
func WithWatchPacks(watch bool) Option {
	return func(s *Service) {
		s.watchPacks = watch
	}
}

// WithSourcesFile sets the JSON file of custom external sources.
func WithSourcesFile(path string) Option {
	return func(s *Service) {
		s.sourcesFile = path
	}
}

// WithSourceLimits sets the outbound fetch timeout and per-source rate.
func WithSourceLimits(timeout time.Duration, rps float64, burst int) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.sourceTimeout = timeout
		}
		s.sourceRPS = rps
		s.sourceBurst = burst
	}
}

// WithWorkerCount sets the number of attempt event workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the attempt event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission id cache. Zero or less
// keeps every id.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithLimits caps the page sizes of attempt and item listings.
func WithLimits(maxAttempts, maxItems int) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttemptsLimit = maxAttempts
		}
		if maxItems > 0 {
			s.maxItemsLimit = maxItems
		}
	}
}

// WithSeedDemoUser creates the demo user on Start.
func WithSeedDemoUser(seed bool) Option {
	return func(s *Service) {
		s.seedDemoUser = seed
	}
}

// WithClock replaces the time source used for attempt timestamps and streak days.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
