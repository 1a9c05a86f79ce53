package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/pkg/logger"
)

const directoryPermission = 0750

// ErrMismatch is returned when a user's server-side progress disagrees with
// the metrics the server returned for the user's attempts.
var ErrMismatch = errors.New("progress mismatch")

// Run creates users, submits generated attempts concurrently and verifies
// each user's progress against the returned per-attempt metrics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadgen")

	log.Info(ctx, "starting load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("attemptsPerUser", config.AttemptsPerUser),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	c := newClient(config.BaseURL, config.Timeout)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	users, err := createUsers(ctx, c, config.Users, stats)
	if err != nil {
		return stats, fmt.Errorf("user creation failed: %w", err)
	}

	attempts, err := generateAttempts(ctx, config, users, stats)
	if err != nil {
		return stats, fmt.Errorf("attempt generation failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveAttempts(config.OutputFile, attempts); err != nil {
			log.Warn(ctx, "failed to save attempts to file", logger.Error(err))
		}
	}

	records := submitAttempts(ctx, c, config, attempts, stats)

	if err := verifyProgress(ctx, c, users, records, stats); err != nil {
		finish(ctx, stats)
		return stats, err
	}

	finish(ctx, stats)
	return stats, nil
}

func createUsers(ctx context.Context, c *client, n int, stats *Stats) ([]string, error) {
	users := make([]string, 0, n)
	for range n {
		id := uuid.NewString()
		if err := c.createUser(ctx, id, "loadgen-"+id[:8]); err != nil {
			return nil, err
		}
		users = append(users, id)
		stats.UsersCreated++
	}
	return users, nil
}

// submitAttempts posts attempts through a worker pool and returns the
// metrics of every accepted attempt grouped by user.
func submitAttempts(ctx context.Context, c *client, config *Config, attempts []Attempt, stats *Stats) map[string][]typing.Record {
	log := logger.Named("loadgen")
	log.Info(ctx, "submitting attempts",
		logger.Int("count", len(attempts)),
		logger.Int("workers", config.Workers))

	var (
		submitted, ok, failed int64
		mu                    sync.Mutex
		wg                    sync.WaitGroup
	)
	records := make(map[string][]typing.Record)
	ch := make(chan Attempt, config.Workers*WorkerChannelMultiplier)

	for range max(config.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range ch {
				atomic.AddInt64(&submitted, 1)
				res, err := c.submit(ctx, a)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "submit failed",
							logger.String("submission_id", a.SubmissionID),
							logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&ok, 1)
				mu.Lock()
				records[a.UserID] = append(records[a.UserID], typing.Record{
					WPM:    res.Metrics.WPM,
					CPM:    res.Metrics.CPM,
					CER:    res.Metrics.CER,
					PackID: a.PackID,
				})
				mu.Unlock()
			}
		}()
	}

feed:
	for _, a := range attempts {
		select {
		case ch <- a:
		case <-ctx.Done():
			break feed
		}
	}
	close(ch)
	wg.Wait()

	stats.AttemptsSubmitted = int(submitted)
	stats.AttemptsOK = int(ok)
	stats.AttemptsFailed = int(failed)
	return records
}

func saveAttempts(filename string, attempts []Attempt) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(attempts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

func finish(ctx context.Context, stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	var successRate, perSecond float64
	if stats.AttemptsSubmitted > 0 {
		successRate = float64(stats.AttemptsOK) / float64(stats.AttemptsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.AttemptsSubmitted) / stats.Duration.Seconds()
	}

	logger.Named("loadgen").Info(ctx, "final statistics",
		logger.Int("usersCreated", stats.UsersCreated),
		logger.Int("attemptsGenerated", stats.AttemptsGenerated),
		logger.Int("attemptsSubmitted", stats.AttemptsSubmitted),
		logger.Int("attemptsOK", stats.AttemptsOK),
		logger.Int("attemptsFailed", stats.AttemptsFailed),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("attemptsPerSecond", perSecond))
}
