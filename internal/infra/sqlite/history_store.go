// Package sqlite persists the user's quiz history: one row per calendar day
// with the medal, score and completion time. Weekly progress and streaks are
// derived from it.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dailyquiz-service/internal/domain"
)

// HistoryStore is the sqlite-backed implementation of app.HistoryStore.
type HistoryStore struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and initializes tables.
func New(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err = createTables(db); err != nil {
		return nil, err
	}

	return &HistoryStore{conn: db}, nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.conn.Close()
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_history (
			quiz_date TEXT PRIMARY KEY,
			medal TEXT NOT NULL,
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			completed_at INTEGER NOT NULL
		)
	`)
	return err
}

// RecordAttempt upserts the day's outcome. Reprocessing a result replaces
// the medal rather than accumulating rows.
func (s *HistoryStore) RecordAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO quiz_history (quiz_date, medal, score, total, completed_at) VALUES (?, ?, ?, ?, ?)",
		attempt.Date, string(attempt.Medal), attempt.Score, attempt.Total, time.Now().Unix(),
	)
	return err
}

// History returns all recorded attempts, newest first.
func (s *HistoryStore) History(ctx context.Context) ([]domain.QuizAttempt, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT quiz_date, medal, score, total FROM quiz_history ORDER BY quiz_date DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.QuizAttempt
	for rows.Next() {
		var a domain.QuizAttempt
		var medal string
		if err := rows.Scan(&a.Date, &medal, &a.Score, &a.Total); err != nil {
			return nil, err
		}
		a.Medal = domain.Medal(medal)
		result = append(result, a)
	}
	return result, rows.Err()
}

// WeeklyProgress returns the medal line for the week containing now, indexed
// by weekday with Sunday at 0.
func (s *HistoryStore) WeeklyProgress(ctx context.Context, now time.Time) ([7]domain.Medal, error) {
	var week [7]domain.Medal
	start := now.AddDate(0, 0, -int(now.Weekday()))
	end := start.AddDate(0, 0, 6)

	rows, err := s.conn.QueryContext(ctx,
		"SELECT quiz_date, medal FROM quiz_history WHERE quiz_date BETWEEN ? AND ?",
		start.Format("2006-01-02"), end.Format("2006-01-02"),
	)
	if err != nil {
		return week, err
	}
	defer rows.Close()

	for rows.Next() {
		var date, medal string
		if err := rows.Scan(&date, &medal); err != nil {
			return week, err
		}
		day, err := time.ParseInLocation("2006-01-02", date, now.Location())
		if err != nil {
			continue
		}
		week[int(day.Weekday())] = domain.Medal(medal)
	}
	return week, rows.Err()
}

// Streak counts consecutive attempt days ending today, or yesterday when
// today's quiz has not been taken yet.
func (s *HistoryStore) Streak(ctx context.Context, now time.Time) (int, error) {
	day := now
	taken, err := s.hasAttempt(ctx, day.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	if !taken {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		taken, err := s.hasAttempt(ctx, day.Format("2006-01-02"))
		if err != nil {
			return 0, err
		}
		if !taken {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

func (s *HistoryStore) hasAttempt(ctx context.Context, date string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM quiz_history WHERE quiz_date = ?", date,
	).Scan(&count)
	return count > 0, err
}
