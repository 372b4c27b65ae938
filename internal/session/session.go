// Package session owns the state of one report dashboard: the selected
// institute and exam, the current report page, analytics, the category
// filter and the open panels. Every backend call goes through a fetch
// channel tagged with a generation number; responses that arrive after a
// newer request on the same channel are dropped.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/pavelanni/examreports/internal/metrics"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/normalize"
	"github.com/pavelanni/examreports/internal/report"
)

var (
	// ErrNoExamSelected is returned by exam-scoped operations before an exam is selected.
	ErrNoExamSelected = errors.New("no exam selected")
	// ErrUnknownQuestion means the question is not in the loaded summary.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrUnknownAnswer means the index is outside the open wrong-answer panel.
	ErrUnknownAnswer = errors.New("unknown wrong answer")
	// ErrNoResourceKey means a wrong answer carries nothing to request resources by.
	ErrNoResourceKey = errors.New("wrong answer has no option, answer id or text")
	// ErrNoRows is returned by ExportCSV when the current page is empty.
	ErrNoRows = errors.New("no rows to export")
	// ErrNoUser is returned when a review is requested without a user id.
	ErrNoUser = errors.New("user id is required")
	// ErrUnknownNotice means the notice has no pending retry.
	ErrUnknownNotice = errors.New("unknown or expired notice")
)

// Backend is the exam backend. Each method returns the raw response body.
type Backend interface {
	Institutes(ctx context.Context) ([]byte, error)
	ExamSchedules(ctx context.Context, instituteID string, f model.UserFilters) ([]byte, error)
	UserReport(ctx context.Context, scheduleID string, page, pageSize int, query string) ([]byte, error)
	Analytics(ctx context.Context, scheduleID string) ([]byte, error)
	QuestionWrongAnswers(ctx context.Context, scheduleID, questionID string) ([]byte, error)
	AnswerResources(ctx context.Context, params url.Values) ([]byte, error)
	ReviewUserExam(ctx context.Context, userID, scheduleID string) ([]byte, error)
	FilterList(ctx context.Context, endpoint, instituteID string) ([]byte, error)
}

// Notifier shows transient notices to the user.
type Notifier interface {
	Notify(n model.Notice)
}

// Busy is a busy indicator shown while a backend call is in flight.
type Busy interface {
	Show()
	Hide()
}

// Preferences is persistent key-value storage.
type Preferences interface {
	GetPreference(key string) (string, error)
	SetPreference(key, value string) error
}

// ExportLog records CSV exports.
type ExportLog interface {
	RecordExport(rec model.ExportRecord) (int64, error)
}

const prefInstituteID = "institute_id"

// Options wires a Session to its collaborators. Only Backend is required.
type Options struct {
	Backend     Backend
	Notifier    Notifier
	Busy        Busy
	Preferences Preferences
	Exports     ExportLog
	// Online reports whether the network is up. Nil means always online.
	Online      func() bool
	PageSize    int
	InstituteID string
	Now         func() time.Time
}

// WrongAnswerPanel is the wrong-answer summary of one question.
type WrongAnswerPanel struct {
	Question model.QuestionSummary     `json:"question"`
	Records  []model.WrongAnswerRecord `json:"records"`
	Source   normalize.Source          `json:"source"`
	Loading  bool                      `json:"loading"`
}

// ResourcePanel lists the resources recommended for one wrong answer.
type ResourcePanel struct {
	Context   model.ResourceContext          `json:"context"`
	Resources []model.ResourceRecommendation `json:"resources"`
	Loading   bool                           `json:"loading"`
}

// ReviewPanel is one user's review attempts for the selected exam.
type ReviewPanel struct {
	UserID   string                `json:"user_id"`
	Header   model.ReviewHeader    `json:"header"`
	Attempts []model.ReviewAttempt `json:"attempts"`
	Loading  bool                  `json:"loading"`
}

// Session is the context of one dashboard. It is safe for concurrent use;
// the mutex is never held across a backend call.
type Session struct {
	backend  Backend
	notifier Notifier
	busy     Busy
	prefs    Preferences
	exports  ExportLog
	online   func() bool
	now      func() time.Time

	mu       sync.Mutex
	gen      [numChannels]uint64
	retries  map[string]func(context.Context)
	retryIDs []string // oldest first

	preferredInstitute string
	institutes         []model.Institute
	instituteID        string
	userFilters        model.UserFilters
	filterOptions      model.FilterOptions
	exams              []model.Exam

	exam            *model.Exam
	tab             model.Tab
	query           string
	rows            []model.ReportRow
	pager           *report.Pager
	analytics       model.Analytics
	analyticsLoaded bool
	filter          *report.FilterCoordinator

	wrong     *WrongAnswerPanel
	resources *ResourcePanel
	review    *ReviewPanel
}

// New creates a session. Nothing is fetched until a Load method is called.
func New(opts Options) *Session {
	s := &Session{
		backend:            opts.Backend,
		notifier:           opts.Notifier,
		busy:               opts.Busy,
		prefs:              opts.Preferences,
		exports:            opts.Exports,
		online:             opts.Online,
		now:                opts.Now,
		retries:            make(map[string]func(context.Context)),
		preferredInstitute: opts.InstituteID,
		institutes:         []model.Institute{},
		exams:              []model.Exam{},
		rows:               []model.ReportRow{},
		pager:              report.NewPager(opts.PageSize),
		filter:             report.NewFilterCoordinator(),
	}
	if s.notifier == nil {
		s.notifier = logNotifier{}
	}
	if s.busy == nil {
		s.busy = noBusy{}
	}
	if s.online == nil {
		s.online = func() bool { return true }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type logNotifier struct{}

func (logNotifier) Notify(n model.Notice) {
	slog.Info("notice", "id", n.ID, "message", n.Message, "retryable", n.Retryable)
}

type noBusy struct{}

func (noBusy) Show() {}
func (noBusy) Hide() {}

// request describes one backend call on a fetch channel.
type request struct {
	ch     channel
	failID string
	fetch  func(context.Context) ([]byte, error)
	// start runs under the lock when the request supersedes the previous one.
	start func()
	// reset clears dependent state when the call fails. It runs under the lock.
	reset func()
	// offline replaces reset when the call is short-circuited offline.
	offline func()
	retry   func(context.Context)
}

// do issues r and returns the body with the generation it was issued under.
// ok is false when the call was short-circuited offline, failed or went
// stale; the caller then has nothing to apply.
func (s *Session) do(ctx context.Context, r request) (body []byte, gen uint64, ok bool) {
	gen = s.begin(r.ch, r.start)

	if !s.online() {
		reset := r.reset
		if r.offline != nil {
			reset = r.offline
		}
		if s.commit(r.ch, gen, reset) {
			s.notifyOffline(ctx, r.retry)
		}
		return nil, gen, false
	}

	s.busy.Show()
	body, err := r.fetch(ctx)
	s.busy.Hide()

	if err != nil {
		if s.commit(r.ch, gen, r.reset) {
			s.notifyFailure(ctx, r.failID, err, r.retry)
		}
		return nil, gen, false
	}
	return body, gen, true
}

// begin starts a new request on ch, superseding any in flight, and runs
// start under the same lock.
func (s *Session) begin(ch channel, start func()) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[ch]++
	if start != nil {
		start()
	}
	return s.gen[ch]
}

// commit runs apply under the lock if gen is still current on ch. A stale
// response is counted and dropped.
func (s *Session) commit(ch channel, gen uint64, apply func()) bool {
	s.mu.Lock()
	current := s.gen[ch] == gen
	if current && apply != nil {
		apply()
	}
	s.mu.Unlock()
	if !current {
		metrics.StaleResponses.WithLabelValues(ch.String()).Inc()
		slog.Debug("dropping stale response", "channel", ch.String(), "generation", gen)
	}
	return current
}

// invalidate bumps the given channels so that in-flight responses are dropped.
// Callers hold the lock.
func (s *Session) invalidate(chs ...channel) {
	for _, ch := range chs {
		s.gen[ch]++
	}
}

func countMismatch(endpoint string, shape normalize.Shape) {
	if shape == normalize.ShapeMismatch {
		metrics.ShapeMismatches.WithLabelValues(endpoint).Inc()
		slog.Debug("unrecognized response shape", "endpoint", endpoint)
	}
}
