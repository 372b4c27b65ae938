package store

import (
	"database/sql"
	"time"
)

// SaveInsight caches the generated wrong-answer insight of a question.
func (s *Store) SaveInsight(scheduleID, questionID, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO insights (schedule_id, question_id, content, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(schedule_id, question_id) DO UPDATE SET content = ?, created_at = ?`,
		scheduleID, questionID, content, time.Now(), content, time.Now(),
	)
	return err
}

// GetInsight returns a cached insight, or "" if none is stored.
func (s *Store) GetInsight(scheduleID, questionID string) (string, error) {
	var content string
	err := s.db.QueryRow(
		`SELECT content FROM insights WHERE schedule_id = ? AND question_id = ?`,
		scheduleID, questionID,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return content, err
}
