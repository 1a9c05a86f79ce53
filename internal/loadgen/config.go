package loadgen

import (
	"time"

	typing "github.com/keystride/keystride/internal/domain/metrics"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL         string        // Base URL of the service
	Users           int           // Number of users to create
	AttemptsPerUser int           // Attempts submitted by each user
	Workers         int           // Number of concurrent submitters
	Timeout         time.Duration // HTTP request timeout
	Seed            uint64        // Seed for generated attempts; 0 picks one
	OutputFile      string        // Optional JSON dump of the generated attempts
	Verbose         bool
}

// Attempt is the body of POST /attempts.
type Attempt struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	ItemID       string `json:"item_id"`
	PackID       string `json:"pack_id,omitempty"`
	Lang         string `json:"lang"`
	TypedText    string `json:"typed_text"`
	TargetText   string `json:"target_text"`
	DurationMS   int64  `json:"duration_ms"`
}

// SubmitResponse is the subset of the POST /attempts response the run uses.
type SubmitResponse struct {
	OK        bool           `json:"ok"`
	AttemptID int64          `json:"attempt_id"`
	Metrics   typing.Metrics `json:"metrics"`
}

// ProgressResponse mirrors GET /users/{id}/progress.
type ProgressResponse struct {
	Overall typing.Summary       `json:"overall"`
	PerPack []typing.PackSummary `json:"per_pack"`
}

// Stats holds run statistics.
type Stats struct {
	UsersCreated      int
	AttemptsGenerated int
	AttemptsSubmitted int
	AttemptsOK        int
	AttemptsFailed    int
	UsersVerified     int
	Mismatches        int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
