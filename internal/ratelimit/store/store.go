package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Increment upserts the counter row for key. An expired window restarts
// the count at 1; otherwise the count advances within the current
// window. Single statement, so concurrent requests cannot lose updates.
func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	query := `
		INSERT INTO rate_limits (key, count, window_start)
		VALUES ($1, 1, NOW())
		ON CONFLICT (key) DO UPDATE SET
			count = CASE
				WHEN rate_limits.window_start < NOW() - make_interval(secs => $2) THEN 1
				ELSE rate_limits.count + 1
			END,
			window_start = CASE
				WHEN rate_limits.window_start < NOW() - make_interval(secs => $2) THEN NOW()
				ELSE rate_limits.window_start
			END
		RETURNING count, window_start
	`

	var count int

	var windowStart time.Time

	err := s.db.QueryRowContext(ctx, query, key, window.Seconds()).Scan(&count, &windowStart)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incrementing rate limit: %w", err)
	}

	return count, windowStart, nil
}
