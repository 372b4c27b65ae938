package session

import (
	"context"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/normalize"
	"github.com/pavelanni/examreports/internal/report"
)

// OpenUserReview loads a user's review attempts for the selected exam. The
// panel header comes from the user's row on the current report page. When
// the backend has no attempts the panel stays closed and a notice says so.
func (s *Session) OpenUserReview(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	exam, err := s.selectedExam()
	if err != nil {
		return err
	}

	s.mu.Lock()
	header := reviewHeader(s.rows, userID)
	s.mu.Unlock()

	body, gen, ok := s.do(ctx, request{
		ch:     chReview,
		failID: i18n.LoadReviewFailed,
		start: func() {
			s.review = &ReviewPanel{UserID: userID, Header: header, Attempts: []model.ReviewAttempt{}, Loading: true}
		},
		fetch: func(ctx context.Context) ([]byte, error) {
			return s.backend.ReviewUserExam(ctx, userID, exam.ScheduleID)
		},
		reset: func() { s.review = nil },
		retry: func(ctx context.Context) { _ = s.OpenUserReview(ctx, userID) },
	})
	if !ok {
		return nil
	}
	attempts, shape := normalize.DecodeReview(body)
	countMismatch(backend.EndpointReviewUserExam, shape)
	now := s.now()
	for i := range attempts {
		attempts[i].Submitted = report.RelativeDate(attempts[i].SubmittedAt, now)
		attempts[i].SubmittedAt = report.FormatDate(attempts[i].SubmittedAt)
	}

	empty := len(attempts) == 0
	if !s.commit(chReview, gen, func() {
		if empty {
			s.review = nil
			return
		}
		if s.review != nil {
			s.review.Attempts = attempts
			s.review.Loading = false
		}
	}) {
		return nil
	}
	if empty {
		s.notify(ctx, i18n.T(ctx, i18n.NoReviewData), nil)
	}
	return nil
}

func reviewHeader(rows []model.ReportRow, userID string) model.ReviewHeader {
	for _, r := range rows {
		if r.UserID == userID {
			return model.ReviewHeader{
				UserName:       r.StudentName,
				Score:          r.MarksObtained,
				Result:         r.Result,
				TotalQuestions: r.TotalQuestions,
				TotalMarks:     r.TotalMarks,
			}
		}
	}
	return model.ReviewHeader{}
}

// CloseReview closes the review panel.
func (s *Session) CloseReview() {
	s.mu.Lock()
	s.invalidate(chReview)
	s.review = nil
	s.mu.Unlock()
}

// Review returns the review panel, or nil when closed.
func (s *Session) Review() *ReviewPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.review == nil {
		return nil
	}
	p := *s.review
	return &p
}
