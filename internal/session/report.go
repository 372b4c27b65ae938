package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/metrics"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/normalize"
	"github.com/pavelanni/examreports/internal/report"
)

// SelectExam makes scheduleID the selected exam, discards everything
// derived from the previous one and loads the data of the active tab.
// An exam missing from the loaded list is selected by ID alone.
func (s *Session) SelectExam(ctx context.Context, scheduleID string) {
	s.mu.Lock()
	exam := model.Exam{ScheduleID: scheduleID}
	for _, e := range s.exams {
		if e.ScheduleID == scheduleID {
			exam = e
			break
		}
	}
	s.clearExamLocked()
	s.exam = &exam
	tab := s.tab
	s.mu.Unlock()

	slog.Info("exam selected", "schedule_id", scheduleID, "title", exam.Title)
	s.loadTab(ctx, tab)
}

// clearExamLocked drops the selected exam and all state derived from it.
// In-flight responses for the old exam become stale. Callers hold the lock.
func (s *Session) clearExamLocked() {
	s.invalidate(examChannels...)
	s.exam = nil
	s.query = ""
	s.rows = []model.ReportRow{}
	s.pager.Reset()
	s.analytics = model.Analytics{}
	s.analyticsLoaded = false
	s.filter.Reset()
	s.wrong = nil
	s.resources = nil
	s.review = nil
}

// SetTab switches the active tab and loads its data if it is not resident.
func (s *Session) SetTab(ctx context.Context, tab model.Tab) {
	s.mu.Lock()
	s.tab = tab
	selected := s.exam != nil
	s.mu.Unlock()
	if selected {
		s.loadTab(ctx, tab)
	}
}

func (s *Session) loadTab(ctx context.Context, tab model.Tab) {
	switch tab {
	case model.TabCategoryReport:
		s.mu.Lock()
		loaded := s.analyticsLoaded
		s.mu.Unlock()
		if !loaded {
			_ = s.LoadAnalytics(ctx)
		}
	default:
		_ = s.LoadUserReport(ctx, 1)
	}
}

func (s *Session) selectedExam() (model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exam == nil {
		return model.Exam{}, ErrNoExamSelected
	}
	return *s.exam, nil
}

// LoadUserReport fetches one page of the user report. The rows replace the
// previous page; on failure the report is emptied.
func (s *Session) LoadUserReport(ctx context.Context, page int) error {
	exam, err := s.selectedExam()
	if err != nil {
		return err
	}
	s.mu.Lock()
	size := s.pager.State().PageSize
	query := s.query
	s.mu.Unlock()
	if page < 1 {
		page = 1
	}

	body, gen, ok := s.do(ctx, request{
		ch:     chReport,
		failID: i18n.LoadReportFailed,
		fetch: func(ctx context.Context) ([]byte, error) {
			return s.backend.UserReport(ctx, exam.ScheduleID, page, size, query)
		},
		reset: func() {
			s.rows = []model.ReportRow{}
			s.pager.Reset()
		},
		retry: func(ctx context.Context) { _ = s.LoadUserReport(ctx, page) },
	})
	if !ok {
		return nil
	}
	decoded, shape := normalize.DecodeReportPage(body)
	countMismatch(backend.EndpointUserReport, shape)
	s.commit(chReport, gen, func() {
		s.rows = decoded.Rows
		s.pager.Load(page)
		s.pager.SetTotal(decoded.Total)
	})
	return nil
}

// NextPage loads the following page. At the last page it does nothing.
func (s *Session) NextPage(ctx context.Context) error {
	return s.movePage(ctx, (*report.Pager).Next)
}

// PrevPage loads the preceding page. On page 1 it does nothing.
func (s *Session) PrevPage(ctx context.Context) error {
	return s.movePage(ctx, (*report.Pager).Prev)
}

func (s *Session) movePage(ctx context.Context, move func(*report.Pager) (int, bool)) error {
	if _, err := s.selectedExam(); err != nil {
		return err
	}
	s.mu.Lock()
	page, ok := move(s.pager)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.LoadUserReport(ctx, page)
}

// Search sets the free-text filter of the user report and reloads page 1.
func (s *Session) Search(ctx context.Context, query string) error {
	if _, err := s.selectedExam(); err != nil {
		return err
	}
	s.mu.Lock()
	s.query = strings.TrimSpace(query)
	s.mu.Unlock()
	return s.LoadUserReport(ctx, 1)
}

// ExportCSV renders the current page of the user report. With no rows it
// returns ErrNoRows and emits nothing.
func (s *Session) ExportCSV(ctx context.Context) (*model.CSVExport, error) {
	s.mu.Lock()
	rows := s.rows
	page := s.pager.State().CurrentPage
	var exam *model.Exam
	if s.exam != nil {
		e := *s.exam
		exam = &e
	}
	s.mu.Unlock()

	data, ok := report.ToCSV(rows, report.UserReportColumns)
	if !ok {
		s.notify(ctx, i18n.T(ctx, i18n.NoRowsToExport), nil)
		return nil, ErrNoRows
	}
	out := &model.CSVExport{
		FileName: report.ExportFileName(exam),
		Data:     []byte(data),
		Rows:     len(rows),
	}
	metrics.CSVExports.Inc()

	if s.exports != nil {
		rec := model.ExportRecord{FileName: out.FileName, Rows: out.Rows, Page: page, CreatedAt: s.now()}
		if exam != nil {
			rec.ScheduleID = exam.ScheduleID
		}
		if _, err := s.exports.RecordExport(rec); err != nil {
			slog.Warn("record export", "file", out.FileName, "error", err)
		}
	}
	slog.Info("exported user report", "file", out.FileName, "rows", out.Rows)
	return out, nil
}

// SelectedExam returns the selected exam, or nil.
func (s *Session) SelectedExam() *model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exam == nil {
		return nil
	}
	e := *s.exam
	return &e
}

// Tab returns the active tab.
func (s *Session) Tab() model.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Report returns the rows of the current page, the pager state, the derived
// page count and the active search query.
func (s *Session) Report() (rows []model.ReportRow, pager model.PagerState, totalPages int, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.pager.State(), s.pager.TotalPages(), s.query
}
