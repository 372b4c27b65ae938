package session

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type response struct {
	body string
	err  error
}

// fakeBackend answers from canned responses keyed by "<endpoint>" or
// "<endpoint>:<schedule id>", and records every call.
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []string
	params    []url.Values
	gates     map[string]chan struct{}
	entered   chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: map[string]response{},
		gates:     map[string]chan struct{}{},
		entered:   make(chan string, 16),
	}
}

func (f *fakeBackend) set(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = response{body: body}
}

func (f *fakeBackend) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = response{err: err}
}

// hold makes calls for key block until the returned func is called.
func (f *fakeBackend) hold(key string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[key] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeBackend) callCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

func (f *fakeBackend) lastParams() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.params) == 0 {
		return nil
	}
	return f.params[len(f.params)-1]
}

func (f *fakeBackend) answer(ctx context.Context, endpoint, scheduleID string, params url.Values) ([]byte, error) {
	keyed := endpoint + ":" + scheduleID
	f.mu.Lock()
	f.calls = append(f.calls, endpoint)
	f.params = append(f.params, params)
	gate := f.gates[keyed]
	if gate == nil {
		gate = f.gates[endpoint]
	}
	r, ok := f.responses[keyed]
	if !ok {
		r, ok = f.responses[endpoint]
	}
	f.mu.Unlock()

	if gate != nil {
		f.entered <- keyed
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, &backend.TransportError{Endpoint: endpoint, Status: 404}
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *fakeBackend) Institutes(ctx context.Context) ([]byte, error) {
	return f.answer(ctx, backend.EndpointInstitutes, "", nil)
}

func (f *fakeBackend) ExamSchedules(ctx context.Context, instituteID string, uf model.UserFilters) ([]byte, error) {
	return f.answer(ctx, backend.EndpointExamSchedules, "", url.Values{
		"institute_id": {instituteID},
		"campus_id":    {uf.CampusID},
	})
}

func (f *fakeBackend) UserReport(ctx context.Context, scheduleID string, page, pageSize int, query string) ([]byte, error) {
	return f.answer(ctx, backend.EndpointUserReport, scheduleID, url.Values{
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
		"q":         {query},
	})
}

func (f *fakeBackend) Analytics(ctx context.Context, scheduleID string) ([]byte, error) {
	return f.answer(ctx, backend.EndpointAnalytics, scheduleID, nil)
}

func (f *fakeBackend) QuestionWrongAnswers(ctx context.Context, scheduleID, questionID string) ([]byte, error) {
	return f.answer(ctx, backend.EndpointQuestionWrong, scheduleID, url.Values{"question_id": {questionID}})
}

func (f *fakeBackend) AnswerResources(ctx context.Context, params url.Values) ([]byte, error) {
	return f.answer(ctx, backend.EndpointAnswerResources, params.Get("schedule_id"), params)
}

func (f *fakeBackend) ReviewUserExam(ctx context.Context, userID, scheduleID string) ([]byte, error) {
	return f.answer(ctx, backend.EndpointReviewUserExam, scheduleID, url.Values{"user_id": {userID}})
}

func (f *fakeBackend) FilterList(ctx context.Context, endpoint, instituteID string) ([]byte, error) {
	return f.answer(ctx, endpoint, "", url.Values{"institute_id": {instituteID}})
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (r *recordingNotifier) Notify(n model.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notice(nil), r.notices...)
}

func (r *recordingNotifier) last() model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return model.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

type countingBusy struct {
	mu            sync.Mutex
	shown, hidden int
}

func (b *countingBusy) Show() { b.mu.Lock(); b.shown++; b.mu.Unlock() }
func (b *countingBusy) Hide() { b.mu.Lock(); b.hidden++; b.mu.Unlock() }

type memPrefs struct {
	mu sync.Mutex
	m  map[string]string
}

func (p *memPrefs) GetPreference(key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m[key], nil
}

func (p *memPrefs) SetPreference(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
	return nil
}

type memExports struct {
	mu   sync.Mutex
	recs []model.ExportRecord
}

func (e *memExports) RecordExport(rec model.ExportRecord) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recs = append(e.recs, rec)
	return int64(len(e.recs)), nil
}

type fixture struct {
	backend  *fakeBackend
	notifier *recordingNotifier
	busy     *countingBusy
	prefs    *memPrefs
	exports  *memExports
	online   bool
	session  *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		backend:  newFakeBackend(),
		notifier: &recordingNotifier{},
		busy:     &countingBusy{},
		prefs:    &memPrefs{m: map[string]string{}},
		exports:  &memExports{},
		online:   true,
	}
	fx.session = New(Options{
		Backend:     fx.backend,
		Notifier:    fx.notifier,
		Busy:        fx.busy,
		Preferences: fx.prefs,
		Exports:     fx.exports,
		Online:      func() bool { return fx.online },
		PageSize:    25,
	})
	return fx
}
