package session

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/normalize"
)

// LoadInstitutes fetches the institute list and picks the active institute:
// the configured one, else the stored preference, else the first listed.
// The exam list of the chosen institute is loaded next.
func (s *Session) LoadInstitutes(ctx context.Context) {
	body, gen, ok := s.do(ctx, request{
		ch:     chInstitutes,
		failID: i18n.LoadInstitutesFailed,
		fetch:  s.backend.Institutes,
		reset:  func() { s.institutes = []model.Institute{} },
		retry:  s.LoadInstitutes,
	})
	if !ok {
		return
	}
	list, shape := normalize.DecodeInstitutes(body)
	countMismatch(backend.EndpointInstitutes, shape)

	stored := s.storedInstitute()
	var chosen string
	if !s.commit(chInstitutes, gen, func() {
		s.institutes = list
		chosen = pickInstitute(list, s.preferredInstitute, stored)
		s.instituteID = chosen
	}) {
		return
	}
	if chosen != "" {
		s.LoadSchedules(ctx)
	}
}

func pickInstitute(list []model.Institute, preferred ...string) string {
	for _, want := range preferred {
		if want == "" {
			continue
		}
		for _, in := range list {
			if in.ID == want {
				return want
			}
		}
	}
	if len(list) > 0 {
		return list[0].ID
	}
	return ""
}

func (s *Session) storedInstitute() string {
	if s.prefs == nil {
		return ""
	}
	v, err := s.prefs.GetPreference(prefInstituteID)
	if err != nil {
		slog.Warn("read institute preference", "error", err)
		return ""
	}
	return v
}

// SelectInstitute switches institute, remembers the choice and reloads
// the exam list. The selected exam is dropped.
func (s *Session) SelectInstitute(ctx context.Context, instituteID string) {
	s.mu.Lock()
	s.instituteID = instituteID
	s.clearExamLocked()
	s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.SetPreference(prefInstituteID, instituteID); err != nil {
			slog.Warn("save institute preference", "error", err)
		}
	}
	s.LoadSchedules(ctx)
}

// SetUserFilters narrows the exam list and reloads it.
func (s *Session) SetUserFilters(ctx context.Context, f model.UserFilters) {
	s.mu.Lock()
	s.userFilters = f
	s.mu.Unlock()
	s.LoadSchedules(ctx)
}

// LoadSchedules fetches the exam schedules of the active institute.
func (s *Session) LoadSchedules(ctx context.Context) {
	s.mu.Lock()
	instituteID, filters := s.instituteID, s.userFilters
	s.mu.Unlock()

	body, gen, ok := s.do(ctx, request{
		ch:     chExams,
		failID: i18n.LoadExamsFailed,
		fetch: func(ctx context.Context) ([]byte, error) {
			return s.backend.ExamSchedules(ctx, instituteID, filters)
		},
		reset: func() { s.exams = []model.Exam{} },
		retry: s.LoadSchedules,
	})
	if !ok {
		return
	}
	exams, shape := normalize.DecodeExams(body)
	countMismatch(backend.EndpointExamSchedules, shape)
	s.commit(chExams, gen, func() { s.exams = exams })
}

// LoadFilterOptions fetches the department, team, campus and location lists
// concurrently. Any failure leaves every list empty.
func (s *Session) LoadFilterOptions(ctx context.Context) {
	s.mu.Lock()
	instituteID := s.instituteID
	s.mu.Unlock()

	var opts model.FilterOptions
	_, gen, ok := s.do(ctx, request{
		ch:     chFilterOptions,
		failID: i18n.LoadFiltersFailed,
		fetch: func(ctx context.Context) ([]byte, error) {
			g, gctx := errgroup.WithContext(ctx)
			lists := []struct {
				endpoint string
				dst      *[]model.FilterOption
			}{
				{backend.EndpointDepartments, &opts.Departments},
				{backend.EndpointTeams, &opts.Teams},
				{backend.EndpointCampuses, &opts.Campuses},
				{backend.EndpointLocationHierarchy, &opts.Countries},
			}
			for _, l := range lists {
				l := l
				g.Go(func() error {
					b, err := s.backend.FilterList(gctx, l.endpoint, instituteID)
					if err != nil {
						return err
					}
					decoded, shape := normalize.DecodeOptionList(b)
					countMismatch(l.endpoint, shape)
					*l.dst = decoded
					return nil
				})
			}
			return nil, g.Wait()
		},
		reset: func() { s.filterOptions = model.FilterOptions{} },
		retry: s.LoadFilterOptions,
	})
	if !ok {
		return
	}
	s.commit(chFilterOptions, gen, func() { s.filterOptions = opts })
}

// Institutes returns the institute list and the active institute.
func (s *Session) Institutes() ([]model.Institute, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.institutes, s.instituteID
}

// Exams returns the exam list, narrowed to titles containing query
// (case-insensitive) when query is not empty.
func (s *Session) Exams(query string) []model.Exam {
	s.mu.Lock()
	exams := s.exams
	s.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return exams
	}
	out := []model.Exam{}
	for _, e := range exams {
		if strings.Contains(strings.ToLower(e.Title), query) {
			out = append(out, e)
		}
	}
	return out
}

// FilterOptions returns the user filter option lists and the active filters.
func (s *Session) FilterOptions() (model.FilterOptions, model.UserFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterOptions, s.userFilters
}
