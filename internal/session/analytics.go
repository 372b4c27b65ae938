package session

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/normalize"
	"github.com/pavelanni/examreports/internal/report"
)

// LoadAnalytics fetches the category report, question summary and
// wrong-answer distribution of the selected exam. Completion, successful or
// not, resolves a pending category filter; an offline short-circuit leaves
// it pending.
func (s *Session) LoadAnalytics(ctx context.Context) error {
	exam, err := s.selectedExam()
	if err != nil {
		return err
	}

	body, gen, ok := s.do(ctx, request{
		ch:     chAnalytics,
		failID: i18n.LoadAnalyticsFailed,
		fetch: func(ctx context.Context) ([]byte, error) {
			return s.backend.Analytics(ctx, exam.ScheduleID)
		},
		reset: func() {
			s.analytics = model.Analytics{}
			s.analyticsLoaded = false
			s.filter.Loaded([]model.QuestionSummary{})
		},
		// No fetch was made, so a pending filter waits for the retry.
		offline: func() {
			s.analytics = model.Analytics{}
			s.analyticsLoaded = false
		},
		retry: func(ctx context.Context) { _ = s.LoadAnalytics(ctx) },
	})
	if !ok {
		return nil
	}
	a, shape := normalize.DecodeAnalytics(body)
	countMismatch(backend.EndpointAnalytics, shape)
	s.commit(chAnalytics, gen, func() {
		s.analytics = a
		s.analyticsLoaded = true
		s.filter.Loaded(a.Questions)
	})
	return nil
}

// RequestCategoryFilter filters the question summary by category. When no
// summary is resident the filter waits for an analytics fetch, which is
// started here.
func (s *Session) RequestCategoryFilter(ctx context.Context, categoryID string) error {
	if _, err := s.selectedExam(); err != nil {
		return err
	}
	s.mu.Lock()
	var resident []model.QuestionSummary
	if s.analyticsLoaded {
		resident = s.analytics.Questions
	}
	needFetch := s.filter.Request(categoryID, resident)
	s.mu.Unlock()

	if needFetch {
		return s.LoadAnalytics(ctx)
	}
	return nil
}

// ClearCategoryFilter drops the category filter.
func (s *Session) ClearCategoryFilter() {
	s.mu.Lock()
	s.filter.Reset()
	s.mu.Unlock()
}

// Analytics returns the loaded analytics and whether a fetch has completed.
func (s *Session) Analytics() (model.Analytics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics, s.analyticsLoaded
}

// CategoryFilter returns the filter state, the pending and applied category
// and the filtered question summaries.
func (s *Session) CategoryFilter() (state report.FilterState, pending, applied string, filtered []model.QuestionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.State(), s.filter.Pending(), s.filter.Applied(), s.filter.Filtered()
}

func findQuestion(qs []model.QuestionSummary, id string) (model.QuestionSummary, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return model.QuestionSummary{}, false
}

// OpenWrongAnswerSummary opens the wrong-answer panel of a question from the
// loaded summary. The panel always reaches a terminal state, possibly with
// no records; a failed per-question fetch also raises a notice.
func (s *Session) OpenWrongAnswerSummary(ctx context.Context, questionID string) error {
	exam, err := s.selectedExam()
	if err != nil {
		return err
	}
	s.mu.Lock()
	q, found := findQuestion(s.analytics.Questions, questionID)
	dist := s.analytics.Distribution
	s.mu.Unlock()
	if !found {
		return ErrUnknownQuestion
	}

	gen := s.begin(chWrongAnswers, func() {
		s.invalidate(chResources)
		s.resources = nil
		s.wrong = &WrongAnswerPanel{Question: q, Records: []model.WrongAnswerRecord{}, Loading: true}
	})

	fetch := func(ctx context.Context, scheduleID, qid string) ([]byte, error) {
		if !s.online() {
			return nil, backend.ErrOffline
		}
		s.busy.Show()
		defer s.busy.Hide()
		return s.backend.QuestionWrongAnswers(ctx, scheduleID, qid)
	}
	res := normalize.AggregateWrongAnswers(ctx, gjson.ParseBytes(q.Raw), normalize.Parse(dist), exam.ScheduleID, fetch)

	if !s.commit(chWrongAnswers, gen, func() {
		if s.wrong != nil {
			s.wrong.Records = res.Records
			s.wrong.Source = res.Source
			s.wrong.Loading = false
		}
	}) {
		return nil
	}
	if res.Err != nil {
		s.notifyFailure(ctx, i18n.LoadWrongAnswersFailed, res.Err, func(ctx context.Context) {
			_ = s.OpenWrongAnswerSummary(ctx, questionID)
		})
	}
	return nil
}

// CloseWrongAnswers closes the wrong-answer panel and the resource panel
// opened from it.
func (s *Session) CloseWrongAnswers() {
	s.mu.Lock()
	s.invalidate(chWrongAnswers, chResources)
	s.wrong = nil
	s.resources = nil
	s.mu.Unlock()
}

// WrongAnswers returns the wrong-answer panel, or nil when closed.
func (s *Session) WrongAnswers() *WrongAnswerPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wrong == nil {
		return nil
	}
	p := *s.wrong
	return &p
}

// OpenResources opens the resource panel for the wrong answer at index in
// the open wrong-answer panel. The answer is keyed by its option id, else
// its answer id, else its text.
func (s *Session) OpenResources(ctx context.Context, index int) error {
	exam, err := s.selectedExam()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.wrong == nil || index < 0 || index >= len(s.wrong.Records) {
		s.mu.Unlock()
		return ErrUnknownAnswer
	}
	rec := s.wrong.Records[index]
	questionID := s.wrong.Question.ID
	s.mu.Unlock()

	param, value := rec.ResourceKey()
	if param == "" {
		return ErrNoResourceKey
	}
	local := model.ResourceContext{QuestionID: questionID, WrongAnswer: rec}
	params := url.Values{
		"schedule_id": {exam.ScheduleID},
		"question_id": {questionID},
		param:         {value},
	}

	body, gen, ok := s.do(ctx, request{
		ch:     chResources,
		failID: i18n.LoadResourcesFailed,
		start: func() {
			s.resources = &ResourcePanel{Context: local, Resources: []model.ResourceRecommendation{}, Loading: true}
		},
		fetch: func(ctx context.Context) ([]byte, error) {
			return s.backend.AnswerResources(ctx, params)
		},
		reset: func() {
			if s.resources != nil {
				s.resources.Loading = false
			}
		},
		retry: func(ctx context.Context) { _ = s.OpenResources(ctx, index) },
	})
	if !ok {
		return nil
	}
	list, serverCtx, shape := normalize.DecodeResources(body)
	countMismatch(backend.EndpointAnswerResources, shape)
	s.commit(chResources, gen, func() {
		if s.resources == nil {
			return
		}
		s.resources.Resources = list
		s.resources.Context.Server = serverCtx
		s.resources.Loading = false
	})
	return nil
}

// CloseResources closes the resource panel.
func (s *Session) CloseResources() {
	s.mu.Lock()
	s.invalidate(chResources)
	s.resources = nil
	s.mu.Unlock()
}

// Resources returns the resource panel, or nil when closed.
func (s *Session) Resources() *ResourcePanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resources == nil {
		return nil
	}
	p := *s.resources
	return &p
}
