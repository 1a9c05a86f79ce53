package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keystride/keystride/internal/domain/model"
)

// DemoUserID is the account seeded for local use.
const DemoUserID = "demo-user"

// CreateUser inserts u and its empty streak in one transaction.
func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) (err error) {
	defer func(start time.Time) { observe("create_user", start, err) }(time.Now())

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastActive.IsZero() {
		u.LastActive = u.CreatedAt
	}
	if u.Settings == "" {
		u.Settings = "{}"
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, created_at, last_active, settings)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			u.ID, u.Username, nullString(u.Email), formatTime(u.CreatedAt), formatTime(u.LastActive), u.Settings)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %q: %w", u.ID, ErrAlreadyExists)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO streaks (user_id, current_streak, longest_streak) VALUES (?, 0, 0)`, u.ID); err != nil {
			return fmt.Errorf("init streak: %w", err)
		}
		return nil
	})
	return err
}

// GetUser loads a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (u model.User, err error) {
	defer func(start time.Time) { observe("get_user", start, err) }(time.Now())

	var (
		email                 sql.NullString
		createdAt, lastActive string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, username, email, created_at, last_active, settings FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &email, &createdAt, &lastActive, &u.Settings)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Email = email.String
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	if u.LastActive, err = parseTime(lastActive); err != nil {
		return model.User{}, fmt.Errorf("parse last_active: %w", err)
	}
	return u, nil
}

// SeedDemoUser inserts the demo account if it does not exist yet.
func (s *SQLiteStore) SeedDemoUser(ctx context.Context) error {
	now := formatTime(time.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users (id, username, email, created_at, last_active)
			 VALUES (?, 'demo', 'demo@example.com', ?, ?)`, DemoUserID, now, now); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO streaks (user_id, current_streak, longest_streak) VALUES (?, 0, 0)`, DemoUserID); err != nil {
			return fmt.Errorf("seed demo streak: %w", err)
		}
		return nil
	})
}
