package service

import (
	"time"

	"github.com/keystride/keystride/internal/adapters/repository"
	"github.com/keystride/keystride/internal/domain/achievement"
	"github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/internal/domain/model"
)

// SubmitRequest is one typing trial to score and store.
type SubmitRequest struct {
	// SubmissionID makes retries idempotent when set.
	SubmissionID string
	UserID       string
	ItemID       string
	PackID       string
	Lang         string
	TypedText    string
	TargetText   string
	DurationMS   int64
}

// SubmitResult is returned for a stored attempt.
type SubmitResult struct {
	OK              bool                     `json:"ok"`
	AttemptID       int64                    `json:"attempt_id"`
	Metrics         metrics.Metrics          `json:"metrics"`
	Streak          model.Streak             `json:"streak"`
	NewAchievements []achievement.Definition `json:"new_achievements"`
}

// CreateUserRequest registers a learner. An empty UserID gets a generated id.
type CreateUserRequest struct {
	UserID   string
	Username string
	Email    string
}

// Overall combines the aggregator means with whole-history totals.
type Overall struct {
	metrics.Summary
	repository.AttemptTotals
}

// ProgressReport summarises a user's practice.
type ProgressReport struct {
	Overall Overall               `json:"overall"`
	PerPack []metrics.PackSummary `json:"per_pack"`
	Streak  model.Streak          `json:"streak"`
}

// AttemptQuery pages through a user's attempts.
type AttemptQuery struct {
	PackID string
	Limit  int
	Offset int
}

// AttemptsPage is one page of a user's attempts.
type AttemptsPage struct {
	UserID   string          `json:"user_id"`
	PackID   *string         `json:"pack_id"`
	Total    int             `json:"total"`
	Attempts []model.Attempt `json:"attempts"`
}

// ItemsPage is one window of a pack's items.
type ItemsPage struct {
	PackID string       `json:"pack_id"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
	Items  []model.Item `json:"items"`
}

// AchievementStatus is a catalog entry seen from one user.
type AchievementStatus struct {
	achievement.Definition
	Criteria string     `json:"criteria"`
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
	Progress float64    `json:"progress"`
}

// AchievementsReport lists every achievement with the user's standing.
type AchievementsReport struct {
	TotalAchievements int                 `json:"total_achievements"`
	EarnedCount       int                 `json:"earned_count"`
	Achievements      []AchievementStatus `json:"achievements"`
}

// Stats describes the running service.
type Stats struct {
	Started         bool   `json:"started"`
	Workers         int    `json:"workers"`
	QueueLength     int    `json:"queue_length"`
	QueueCapacity   int    `json:"queue_capacity"`
	EventsProcessed int64  `json:"events_processed"`
	EventsFailed    int64  `json:"events_failed"`
	DedupeSize      int64  `json:"dedupe_size"`
	FeedSubscribers int    `json:"feed_subscribers"`
	Users           int    `json:"users"`
	Attempts        int    `json:"attempts"`
	Uptime          string `json:"uptime"`
}
