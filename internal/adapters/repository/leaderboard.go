package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Leaderboard ranks users by their best single-attempt WPM.
func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) (out []LeaderboardEntry, err error) {
	defer func(start time.Time) { observe("leaderboard", start, err) }(time.Now())
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.user_id, COALESCE(u.username, ''), MAX(a.wpm) AS best, COUNT(*)
		 FROM attempts a LEFT JOIN users u ON u.id = a.user_id
		 GROUP BY a.user_id
		 ORDER BY best DESC, a.user_id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.BestWPM, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	assignRanksWithTies(out)
	return out, nil
}

// Rank returns a single user's leaderboard position.
func (s *SQLiteStore) Rank(ctx context.Context, userID string) (e LeaderboardEntry, err error) {
	defer func(start time.Time) { observe("rank", start, err) }(time.Now())

	err = s.db.QueryRowContext(ctx,
		`WITH best AS (SELECT user_id, MAX(wpm) AS wpm, COUNT(*) AS n FROM attempts GROUP BY user_id)
		 SELECT b.user_id, COALESCE(u.username, ''), b.wpm, b.n,
		        (SELECT COUNT(DISTINCT o.wpm) FROM best o WHERE o.wpm > b.wpm) + 1
		 FROM best b LEFT JOIN users u ON u.id = b.user_id
		 WHERE b.user_id = ?`, userID).
		Scan(&e.UserID, &e.Username, &e.BestWPM, &e.Attempts, &e.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return LeaderboardEntry{}, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return LeaderboardEntry{}, fmt.Errorf("rank: %w", err)
	}
	return e, nil
}

// assignRanksWithTies gives equal scores the same rank; the next distinct
// score takes the following rank. entries must be sorted by score desc.
func assignRanksWithTies(entries []LeaderboardEntry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].BestWPM != entries[i-1].BestWPM {
			rank++
		}
		entries[i].Rank = rank
	}
}
