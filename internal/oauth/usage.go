package oauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Usage is the last known usage and rate-limit state of a profile.
type Usage struct {
	SessionPercent   float64   `json:"session_percent"`
	WeeklyPercent    float64   `json:"weekly_percent"`
	RateLimitedUntil time.Time `json:"rate_limited_until,omitzero"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AtCapacity reports whether either usage window is exhausted.
func (u *Usage) AtCapacity() bool {
	if u == nil {
		return false
	}
	return u.SessionPercent >= 100 || u.WeeklyPercent >= 100
}

// RateLimitedAt reports whether a rate limit is still in force at now.
func (u *Usage) RateLimitedAt(now time.Time) bool {
	if u == nil || u.RateLimitedUntil.IsZero() {
		return false
	}
	return now.Before(u.RateLimitedUntil)
}

// score orders profiles for best-available selection; lower is better.
func (u *Usage) score() float64 {
	if u == nil {
		return 0
	}
	return max(u.SessionPercent, u.WeeklyPercent)
}

// UsageStore persists per-profile usage in SQLite.
type UsageStore struct {
	db *sql.DB
}

// OpenUsageStore opens or creates a usage database at path.
func OpenUsageStore(path string) (*UsageStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening usage database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS profile_usage (
			profile_id         TEXT PRIMARY KEY,
			session_percent    REAL NOT NULL DEFAULT 0,
			weekly_percent     REAL NOT NULL DEFAULT 0,
			rate_limited_until TEXT NOT NULL DEFAULT '',
			updated_at         TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating usage table: %w", err)
	}

	return &UsageStore{db: db}, nil
}

// Close closes the database connection.
func (s *UsageStore) Close() error {
	return s.db.Close()
}

// Get returns the usage for a profile, or nil if none has been recorded.
func (s *UsageStore) Get(ctx context.Context, profileID string) (*Usage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_percent, weekly_percent, rate_limited_until, updated_at
		FROM profile_usage WHERE profile_id = ?
	`, profileID)

	var u Usage
	var limitedUntil, updatedAt string
	err := row.Scan(&u.SessionPercent, &u.WeeklyPercent, &limitedUntil, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading usage for %s: %w", profileID, err)
	}

	if limitedUntil != "" {
		if u.RateLimitedUntil, err = time.Parse(time.RFC3339Nano, limitedUntil); err != nil {
			return nil, fmt.Errorf("parsing rate limit time for %s: %w", profileID, err)
		}
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing update time for %s: %w", profileID, err)
	}
	return &u, nil
}

// Record stores the latest usage percentages for a profile.
func (s *UsageStore) Record(ctx context.Context, profileID string, sessionPercent, weeklyPercent float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_usage (profile_id, session_percent, weekly_percent, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			session_percent = excluded.session_percent,
			weekly_percent  = excluded.weekly_percent,
			updated_at      = excluded.updated_at
	`, profileID, sessionPercent, weeklyPercent, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording usage for %s: %w", profileID, err)
	}
	return nil
}

// MarkRateLimited records that a profile is rate limited until the given
// time. A zero until clears the limit.
func (s *UsageStore) MarkRateLimited(ctx context.Context, profileID string, until, at time.Time) error {
	var untilStr string
	if !until.IsZero() {
		untilStr = until.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_usage (profile_id, rate_limited_until, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			rate_limited_until = excluded.rate_limited_until,
			updated_at         = excluded.updated_at
	`, profileID, untilStr, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("marking %s rate limited: %w", profileID, err)
	}
	return nil
}
