package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/internal/domain/streak"
	"github.com/keystride/keystride/pkg/metrics"
)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadStreak(ctx context.Context, q queryRower, userID string) (model.Streak, error) {
	s := model.Streak{UserID: userID}
	var last sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT current_streak, longest_streak, last_practice_date FROM streaks WHERE user_id = ?`, userID).
		Scan(&s.Current, &s.Longest, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return model.Streak{}, fmt.Errorf("load streak: %w", err)
	}
	s.LastPracticeDate = last.String
	return s, nil
}

// UpdateStreak reads, advances and writes the streak in one transaction.
func (s *SQLiteStore) UpdateStreak(ctx context.Context, userID string, day streak.Day) (next model.Streak, err error) {
	defer func(start time.Time) { observe("update_streak", start, err) }(time.Now())

	var prev model.Streak
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if prev, err = loadStreak(ctx, tx, userID); err != nil {
			return err
		}
		next = streak.Advance(prev, day)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO streaks (user_id, current_streak, longest_streak, last_practice_date)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
			   current_streak = excluded.current_streak,
			   longest_streak = excluded.longest_streak,
			   last_practice_date = excluded.last_practice_date`,
			userID, next.Current, next.Longest, next.LastPracticeDate)
		if err != nil {
			return fmt.Errorf("save streak: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Streak{}, err
	}
	metrics.RecordStreakUpdate(streak.Outcome(prev, next))
	return next, nil
}

// GetStreak returns the user's streak, or the zero streak when none exists.
func (s *SQLiteStore) GetStreak(ctx context.Context, userID string) (st model.Streak, err error) {
	defer func(start time.Time) { observe("get_streak", start, err) }(time.Now())
	return loadStreak(ctx, s.db, userID)
}
