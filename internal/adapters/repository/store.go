// Package repository persists users, attempts, streaks and achievements.
package repository

import (
	"context"
	"time"

	"github.com/keystride/keystride/internal/domain/achievement"
	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/internal/domain/streak"
)

// DefaultAttemptLimit is used when an AttemptFilter has no limit.
const DefaultAttemptLimit = 100

// AttemptFilter narrows ListAttempts.
type AttemptFilter struct {
	PackID string
	Limit  int
	Offset int
}

// AttemptTotals summarises a user's history beyond the aggregator means.
type AttemptTotals struct {
	TotalTimeMS int64   `json:"total_time_ms"`
	BestWPM     float64 `json:"best_wpm"`
	AvgAccuracy float64 `json:"avg_accuracy"`
}

// Earned is a user's unlocked achievement.
type Earned struct {
	EarnedAt time.Time
	Progress float64
}

// LeaderboardEntry is one row of the best-WPM ranking.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"user_id"`
	Username string  `json:"username,omitempty"`
	BestWPM  float64 `json:"best_wpm"`
	Attempts int     `json:"attempts"`
}

// Store provides read/write access to persistent state.
type Store interface {
	// CreateUser inserts a user and an empty streak.
	// Returns ErrAlreadyExists if the id, username or email is taken.
	CreateUser(ctx context.Context, u model.User) error
	// GetUser returns ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id string) (model.User, error)
	// SeedDemoUser inserts the demo user if missing.
	SeedDemoUser(ctx context.Context) error

	// RecordAttempt stores a new attempt and touches the user's last_active.
	RecordAttempt(ctx context.Context, a model.Attempt) (int64, error)
	// ListAttempts returns a user's attempts, newest first.
	ListAttempts(ctx context.Context, userID string, f AttemptFilter) ([]model.Attempt, error)
	// AttemptRecords returns the aggregator input for all of a user's attempts.
	AttemptRecords(ctx context.Context, userID string) ([]typing.Record, error)
	AttemptTotals(ctx context.Context, userID string) (AttemptTotals, error)

	// UpdateStreak advances the user's streak for practice on day.
	UpdateStreak(ctx context.Context, userID string, day streak.Day) (model.Streak, error)
	// GetStreak returns the zero streak when the user has none.
	GetStreak(ctx context.Context, userID string) (model.Streak, error)

	SeedAchievements(ctx context.Context, defs []achievement.Definition) error
	ListAchievements(ctx context.Context) ([]achievement.Definition, error)
	// AchievementStats gathers the figures defs refer to.
	AchievementStats(ctx context.Context, userID string, defs []achievement.Definition) (achievement.Stats, error)
	EarnedAchievements(ctx context.Context, userID string) (map[string]Earned, error)
	// AwardAchievements marks ids as earned. Already earned ids are ignored.
	AwardAchievements(ctx context.Context, userID string, ids []string) error

	// Leaderboard returns the top users by best WPM. Equal scores share a rank.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// Rank returns ErrNotFound for users without attempts.
	Rank(ctx context.Context, userID string) (LeaderboardEntry, error)

	// Totals counts users and attempts.
	Totals(ctx context.Context) (users, attempts int, err error)
	Close() error
}
