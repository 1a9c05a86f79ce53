// Package model contains domain records passed between layers.
package model

import (
	"time"

	"github.com/keystride/keystride/internal/domain/metrics"
)

// User is a registered learner.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Settings   string    `json:"settings"`
}

// Attempt is one stored typing trial. It is never modified after insert.
type Attempt struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	ItemID     string          `json:"item_id"`
	PackID     string          `json:"pack_id,omitempty"`
	Lang       string          `json:"lang"`
	TypedText  string          `json:"typed_text"`
	TargetText string          `json:"target_text"`
	DurationMS int64           `json:"duration_ms"`
	Metrics    metrics.Metrics `json:"metrics"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Record projects the attempt onto the aggregator input.
func (a Attempt) Record() metrics.Record {
	return metrics.Record{WPM: a.Metrics.WPM, CPM: a.Metrics.CPM, CER: a.Metrics.CER, PackID: a.PackID}
}

// Streak tracks consecutive practice days.
type Streak struct {
	UserID           string `json:"-"`
	Current          int    `json:"current_streak"`
	Longest          int    `json:"longest_streak"`
	LastPracticeDate string `json:"last_practice_date,omitempty"` // YYYY-MM-DD
}

// Pack describes a practice pack.
type Pack struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
	License   string   `json:"license,omitempty"`
	Source    string   `json:"source,omitempty"`
	Topics    []string `json:"topics"`
	Notes     string   `json:"notes,omitempty"`
	Count     int      `json:"count"`
}

// Item is one pack entry. Items are free-form JSON objects; only id and tags
// are interpreted by the server.
type Item map[string]any

// ID returns the item's id field, or "" when absent.
func (it Item) ID() string {
	s, _ := it["id"].(string)
	return s
}

// Tags returns the item's string tags.
func (it Item) Tags() []string {
	raw, ok := it["tags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// HasTag reports whether the item carries tag.
func (it Item) HasTag(tag string) bool {
	for _, t := range it.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

// AttemptEvent is published after an attempt has been stored.
type AttemptEvent struct {
	AttemptID  int64           `json:"attempt_id"`
	UserID     string          `json:"user_id"`
	PackID     string          `json:"pack_id,omitempty"`
	Lang       string          `json:"lang"`
	Metrics    metrics.Metrics `json:"metrics"`
	Streak     Streak          `json:"streak"`
	Unlocked   []string        `json:"unlocked,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}
