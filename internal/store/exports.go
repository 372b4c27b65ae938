package store

import (
	"time"

	"github.com/pavelanni/examreports/internal/model"
)

// RecordExport logs a CSV export and returns its ID.
func (s *Store) RecordExport(rec model.ExportRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO exports (schedule_id, file_name, rows, page, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ScheduleID, rec.FileName, rec.Rows, rec.Page, rec.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListExports returns the most recent exports, newest first. An empty
// scheduleID lists exports of every exam; limit <= 0 means no limit.
func (s *Store) ListExports(scheduleID string, limit int) ([]model.ExportRecord, error) {
	query := `SELECT id, schedule_id, file_name, rows, page, created_at FROM exports WHERE 1=1`
	var args []any
	if scheduleID != "" {
		query += ` AND schedule_id = ?`
		args = append(args, scheduleID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExportRecord
	for rows.Next() {
		var r model.ExportRecord
		if err := rows.Scan(&r.ID, &r.ScheduleID, &r.FileName, &r.Rows, &r.Page, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
