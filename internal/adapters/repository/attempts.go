package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/internal/domain/model"
)

const attemptColumns = `id, user_id, item_id, pack_id, lang, typed_text, target_text, duration_ms,
	wpm, cpm, cer, distance, accuracy, error_heatmap, created_at`

// RecordAttempt inserts a and updates the user's last_active in one transaction.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, a model.Attempt) (id int64, err error) {
	defer func(start time.Time) { observe("record_attempt", start, err) }(time.Now())

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	heatmap := a.Metrics.ErrorHeatmap
	if heatmap == nil {
		heatmap = typing.ErrorHeatmap{}
	}
	heatmapJSON, err := json.Marshal(heatmap)
	if err != nil {
		return 0, fmt.Errorf("encode heatmap: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO attempts (user_id, item_id, pack_id, lang, typed_text, target_text, duration_ms,
				wpm, cpm, cer, distance, accuracy, error_heatmap, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.UserID, a.ItemID, nullString(a.PackID), a.Lang, a.TypedText, a.TargetText, a.DurationMS,
			a.Metrics.WPM, a.Metrics.CPM, a.Metrics.CER, a.Metrics.Distance, a.Metrics.Accuracy,
			string(heatmapJSON), formatTime(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("attempt id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET last_active = ? WHERE id = ?`,
			formatTime(a.CreatedAt), a.UserID); err != nil {
			return fmt.Errorf("touch user: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListAttempts returns attempts newest first, optionally for one pack.
func (s *SQLiteStore) ListAttempts(ctx context.Context, userID string, f AttemptFilter) (out []model.Attempt, err error) {
	defer func(start time.Time) { observe("list_attempts", start, err) }(time.Now())

	if f.Limit <= 0 {
		f.Limit = DefaultAttemptLimit
	}
	f.Offset = max(f.Offset, 0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = ? AND (? = '' OR pack_id = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, f.PackID, f.PackID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return out, nil
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (model.Attempt, error) {
	var (
		a                  model.Attempt
		packID             sql.NullString
		heatmap, createdAt string
	)
	err := scanner.Scan(&a.ID, &a.UserID, &a.ItemID, &packID, &a.Lang, &a.TypedText, &a.TargetText, &a.DurationMS,
		&a.Metrics.WPM, &a.Metrics.CPM, &a.Metrics.CER, &a.Metrics.Distance, &a.Metrics.Accuracy, &heatmap, &createdAt)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}

	a.PackID = packID.String
	a.Metrics.DurationMS = typing.ClampDuration(a.DurationMS)
	a.Metrics.ErrorHeatmap = typing.ErrorHeatmap{}
	if err := json.Unmarshal([]byte(heatmap), &a.Metrics.ErrorHeatmap); err != nil {
		return model.Attempt{}, fmt.Errorf("decode heatmap of attempt %d: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Attempt{}, fmt.Errorf("parse created_at of attempt %d: %w", a.ID, err)
	}
	return a, nil
}

// AttemptRecords returns aggregator input in insertion order.
func (s *SQLiteStore) AttemptRecords(ctx context.Context, userID string) (out []typing.Record, err error) {
	defer func(start time.Time) { observe("attempt_records", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT wpm, cpm, cer, COALESCE(pack_id, '') FROM attempts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("attempt records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r typing.Record
		if err := rows.Scan(&r.WPM, &r.CPM, &r.CER, &r.PackID); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AttemptTotals returns total practice time, best WPM and mean accuracy.
func (s *SQLiteStore) AttemptTotals(ctx context.Context, userID string) (t AttemptTotals, err error) {
	defer func(start time.Time) { observe("attempt_totals", start, err) }(time.Now())

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_ms), 0), COALESCE(MAX(wpm), 0), COALESCE(AVG(accuracy), 0)
		 FROM attempts WHERE user_id = ?`, userID).Scan(&t.TotalTimeMS, &t.BestWPM, &t.AvgAccuracy)
	if err != nil {
		return AttemptTotals{}, fmt.Errorf("attempt totals: %w", err)
	}
	return t, nil
}
