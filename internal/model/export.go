package model

import "time"

// ExportRecord logs one CSV export of the user report.
type ExportRecord struct {
	ID         int64     `json:"id"`
	ScheduleID string    `json:"schedule_id"`
	FileName   string    `json:"file_name"`
	Rows       int       `json:"rows"`
	Page       int       `json:"page"`
	CreatedAt  time.Time `json:"created_at"`
}

// CSVExport is a rendered CSV blob ready for download.
type CSVExport struct {
	FileName string
	Data     []byte
	Rows     int
}
