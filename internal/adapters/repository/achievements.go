package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keystride/keystride/internal/domain/achievement"
)

// SeedAchievements inserts defs that are not stored yet. Existing rows are kept.
func (s *SQLiteStore) SeedAchievements(ctx context.Context, defs []achievement.Definition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO achievements (id, name, description, icon, criteria, tier)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare seed: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, d := range defs {
			if _, err := stmt.ExecContext(ctx, d.ID, d.Name, d.Description, d.Icon, d.Rule.String(), string(d.Tier)); err != nil {
				return fmt.Errorf("seed achievement %q: %w", d.ID, err)
			}
		}
		return nil
	})
}

// ListAchievements returns the stored catalog in insertion order.
func (s *SQLiteStore) ListAchievements(ctx context.Context) (out []achievement.Definition, err error) {
	defer func(start time.Time) { observe("list_achievements", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, icon, criteria, tier FROM achievements ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			d        achievement.Definition
			criteria string
			tier     string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Icon, &criteria, &tier); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		if d.Rule, err = achievement.ParseRule(criteria); err != nil {
			return nil, fmt.Errorf("achievement %q: %w", d.ID, err)
		}
		d.Tier = achievement.Tier(tier)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AchievementStats gathers every figure the rules in defs compare against.
func (s *SQLiteStore) AchievementStats(ctx context.Context, userID string, defs []achievement.Definition) (st achievement.Stats, err error) {
	defer func(start time.Time) { observe("achievement_stats", start, err) }(time.Now())

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(wpm), 0), COALESCE(MAX(accuracy), 0), COUNT(DISTINCT lang)
		 FROM attempts WHERE user_id = ?`, userID).
		Scan(&st.Attempts, &st.BestWPM, &st.BestAccuracy, &st.Languages)
	if err != nil {
		return achievement.Stats{}, fmt.Errorf("attempt stats: %w", err)
	}

	if st.AttemptsByLang, err = s.attemptsByLang(ctx, userID); err != nil {
		return achievement.Stats{}, err
	}

	cur, err := loadStreak(ctx, s.db, userID)
	if err != nil {
		return achievement.Stats{}, err
	}
	st.Streak = cur.Current

	st.PacksMatching = map[string]int{}
	for _, d := range defs {
		if d.Rule.Kind != achievement.KindPacksMatching {
			continue
		}
		if _, done := st.PacksMatching[d.Rule.Param]; done {
			continue
		}
		var n int
		// Substring match is case-insensitive, like SQL LIKE.
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(DISTINCT pack_id) FROM attempts
			 WHERE user_id = ? AND pack_id IS NOT NULL AND instr(lower(pack_id), lower(?)) > 0`,
			userID, d.Rule.Param).Scan(&n)
		if err != nil {
			return achievement.Stats{}, fmt.Errorf("pack stats: %w", err)
		}
		st.PacksMatching[d.Rule.Param] = n
	}
	return st, nil
}

func (s *SQLiteStore) attemptsByLang(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lang, COUNT(*) FROM attempts WHERE user_id = ? GROUP BY lang`, userID)
	if err != nil {
		return nil, fmt.Errorf("lang stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]int{}
	for rows.Next() {
		var (
			lang string
			n    int
		)
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scan lang stats: %w", err)
		}
		out[lang] = n
	}
	return out, rows.Err()
}

// EarnedAchievements returns the user's unlocked achievements by id.
func (s *SQLiteStore) EarnedAchievements(ctx context.Context, userID string) (out map[string]Earned, err error) {
	defer func(start time.Time) { observe("earned_achievements", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT achievement_id, earned_at, progress FROM user_achievements WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("earned achievements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = map[string]Earned{}
	for rows.Next() {
		var (
			id, earnedAt string
			e            Earned
		)
		if err := rows.Scan(&id, &earnedAt, &e.Progress); err != nil {
			return nil, fmt.Errorf("scan earned: %w", err)
		}
		if e.EarnedAt, err = parseTime(earnedAt); err != nil {
			return nil, fmt.Errorf("parse earned_at: %w", err)
		}
		out[id] = e
	}
	return out, rows.Err()
}

// AwardAchievements records ids as earned now.
func (s *SQLiteStore) AwardAchievements(ctx context.Context, userID string, ids []string) (err error) {
	defer func(start time.Time) { observe("award_achievements", start, err) }(time.Now())
	if len(ids) == 0 {
		return nil
	}

	now := formatTime(time.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, earned_at, progress)
				 VALUES (?, ?, ?, 1.0)`, userID, id, now); err != nil {
				return fmt.Errorf("award %q: %w", id, err)
			}
		}
		return nil
	})
}
