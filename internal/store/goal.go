package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultDailyTarget is the goal created on first access, in minutes
const DefaultDailyTarget = 20

// GetGoal returns the goal singleton, creating it with defaults first
func (s *Store) GetGoal(ctx context.Context) (*Goal, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO goal (id, daily_target) VALUES (1, ?)", DefaultDailyTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	g := &Goal{}
	var seconds int64
	err = s.db.QueryRowContext(ctx, `
		SELECT daily_target, current_streak, longest_streak, last_read_date,
		       total_books_completed, total_time_read_sec
		FROM goal WHERE id = 1
	`).Scan(&g.DailyTarget, &g.CurrentStreak, &g.LongestStreak, &g.LastReadDate,
		&g.TotalBooksCompleted, &seconds)
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	g.TotalTimeRead = time.Duration(seconds) * time.Second
	return g, nil
}

// PutGoal replaces the goal singleton
func (s *Store) PutGoal(ctx context.Context, g *Goal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goal (id, daily_target, current_streak, longest_streak, last_read_date,
		                  total_books_completed, total_time_read_sec)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			daily_target = excluded.daily_target,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_read_date = excluded.last_read_date,
			total_books_completed = excluded.total_books_completed,
			total_time_read_sec = excluded.total_time_read_sec
		`, g.DailyTarget, g.CurrentStreak, g.LongestStreak, g.LastReadDate,
		g.TotalBooksCompleted, int64(g.TotalTimeRead/time.Second))

	if err != nil {
		return fmt.Errorf("failed to put goal: %w", err)
	}
	return nil
}

// ClearAll wipes every table except the schema version
func (s *Store) ClearAll(ctx context.Context) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"sessions", "covers", "files", "books", "goal"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}
