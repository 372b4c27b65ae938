package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/llm"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

const testAnalytics = `{"data":{
	"category_report":[{"category_id":"c1","name":"Algebra"}],
	"question_summary":[{"id":"q1","question":"2+2?","category_id":"c1","attempts":20}],
	"wrong_answer_distribution":[
		{"question_id":"q1","wrong_answers":[{"answer":"5","option_id":"o5","count":5}]}
	]}}`

func newBackendServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testServer struct {
	handler *Handler
	router  chi.Router
	store   *store.Store
}

func newTestServer(t *testing.T, backendURL string, l *llm.Client) *testServer {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bc, err := backend.New(backendURL)
	require.NoError(t, err)
	h, err := New(st, l, bc, func() bool { return true }, model.ReportConfig{PageSize: 10})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(i18n.Middleware)
	h.Routes(r)
	return &testServer{handler: h, router: r, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(nil, nil, nil, nil, model.ReportConfig{})
	assert.Error(t, err)
}

func TestInstitutesAndExams(t *testing.T) {
	srv := newBackendServer(t, map[string]string{
		backend.EndpointInstitutes:    `{"institutes":[{"id":"i1","name":"North"},{"id":"i2","name":"South"}]}`,
		backend.EndpointExamSchedules: `[{"schedule_id":"s1","title":"Midterm"},{"schedule_id":"s2","title":"Final"}]`,
	})
	ts := newTestServer(t, srv.URL, nil)

	rec := ts.do(t, http.MethodPost, "/api/institutes/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.JSONEq(t, `"i1"`, string(out["selected"]))

	rec = ts.do(t, http.MethodPost, "/api/institutes/i2/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pref, err := ts.store.GetPreference(store.PrefInstituteID)
	require.NoError(t, err)
	assert.Equal(t, "i2", pref)

	rec = ts.do(t, http.MethodGet, "/api/exams?q=mid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exams":[{"schedule_id":"s1","title":"Midterm"}]}`, rec.Body.String())
}

func TestReportRequiresExam(t *testing.T) {
	ts := newTestServer(t, newBackendServer(t, nil).URL, nil)

	rec := ts.do(t, http.MethodPost, "/api/report/next", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/users/u1/review", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/report.csv", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSelectExamAndExportCSV(t *testing.T) {
	srv := newBackendServer(t, map[string]string{
		backend.EndpointUserReport: `{"data":{"items":[{"user_id":"u1","student_name":"Ann","marks_obtained":7,"result":"pass"}],"total":1}}`,
	})
	ts := newTestServer(t, srv.URL, nil)

	rec := ts.do(t, http.MethodPost, "/api/exams/s1/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.JSONEq(t, `1`, string(out["total_pages"]))

	var rows []model.ReportRow
	require.NoError(t, json.Unmarshal(out["rows"], &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0].StudentName)

	rec = ts.do(t, http.MethodGet, "/api/report.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "exam_user_report_s1.csv")
	assert.Contains(t, rec.Body.String(), `"Ann"`)

	rec = ts.do(t, http.MethodGet, "/api/exports?schedule_id=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var exports struct {
		Exports []model.ExportRecord `json:"exports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exports))
	require.Len(t, exports.Exports, 1)
	assert.Equal(t, 1, exports.Exports[0].Rows)
}

func TestExportWithoutRowsIsNoContent(t *testing.T) {
	srv := newBackendServer(t, map[string]string{backend.EndpointUserReport: `[]`})
	ts := newTestServer(t, srv.URL, nil)
	ts.do(t, http.MethodPost, "/api/exams/s1/select", "")

	rec := ts.do(t, http.MethodGet, "/api/report.csv", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, ts.handler.notices.List(), 1)
}

func TestFailureRaisesNotice(t *testing.T) {
	ts := newTestServer(t, newBackendServer(t, nil).URL, nil)
	ts.do(t, http.MethodPost, "/api/exams/s1/select", "")

	rec := ts.do(t, http.MethodGet, "/api/notices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Notices []model.Notice `json:"notices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Notices, 1)
	assert.Equal(t, "Failed to load the user report: boom", out.Notices[0].Message)
	assert.False(t, out.Notices[0].Retryable)

	rec = ts.do(t, http.MethodPost, "/api/notices/"+out.Notices[0].ID+"/retry", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/notices/"+out.Notices[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissNotice(t *testing.T) {
	ts := newTestServer(t, newBackendServer(t, nil).URL, nil)
	ts.handler.notices.Notify(model.Notice{ID: "n1", Message: "hello"})

	rec := ts.do(t, http.MethodDelete, "/api/notices/n1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ts.handler.notices.List())
}

func TestCategoryFilterAndWrongAnswers(t *testing.T) {
	srv := newBackendServer(t, map[string]string{
		backend.EndpointUserReport:      `[]`,
		backend.EndpointAnalytics:       testAnalytics,
		backend.EndpointAnswerResources: `{"data":{"resources":[{"full_name":"Dr. Who"}]}}`,
	})
	ts := newTestServer(t, srv.URL, nil)
	ts.do(t, http.MethodPost, "/api/exams/s1/select", "")

	rec := ts.do(t, http.MethodPost, "/api/analytics/filter/c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.JSONEq(t, `"idle"`, string(out["state"]))
	assert.JSONEq(t, `"c1"`, string(out["applied"]))

	rec = ts.do(t, http.MethodPost, "/api/questions/q1/wrong-answers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var wrong struct {
		Panel struct {
			Records []model.WrongAnswerRecord `json:"records"`
			Loading bool                      `json:"loading"`
		} `json:"panel"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wrong))
	require.Len(t, wrong.Panel.Records, 1)
	assert.False(t, wrong.Panel.Loading)

	rec = ts.do(t, http.MethodPost, "/api/wrong-answers/0/resources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dr. Who")

	rec = ts.do(t, http.MethodPost, "/api/wrong-answers/5/resources", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/questions/nope/wrong-answers", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/wrong-answers", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, ts.handler.Session().WrongAnswers())
	assert.Nil(t, ts.handler.Session().Resources())
}

func TestSetTab(t *testing.T) {
	srv := newBackendServer(t, map[string]string{backend.EndpointAnalytics: testAnalytics})
	ts := newTestServer(t, srv.URL, nil)

	rec := ts.do(t, http.MethodPost, "/api/tab/bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tab/category", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/status", "")
	out := decode(t, rec)
	assert.JSONEq(t, `"category"`, string(out["tab"]))
	assert.JSONEq(t, `false`, string(out["busy"]))
}

func TestInsight(t *testing.T) {
	var calls atomic.Int32
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"off by one\"}"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(llmSrv.Close)
	l, err := llm.New(llmSrv.URL+"/v1", "key", "m", "brief")
	require.NoError(t, err)

	srv := newBackendServer(t, map[string]string{
		backend.EndpointUserReport: `[]`,
		backend.EndpointAnalytics:  testAnalytics,
	})
	ts := newTestServer(t, srv.URL, l)
	ts.do(t, http.MethodPost, "/api/exams/s1/select", "")
	ts.do(t, http.MethodPost, "/api/analytics/reload", "")

	rec := ts.do(t, http.MethodPost, "/api/questions/q1/insight", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "off by one")

	rec = ts.do(t, http.MethodPost, "/api/questions/q1/insight", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Insight-Cache"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestInsightDisabled(t *testing.T) {
	ts := newTestServer(t, newBackendServer(t, nil).URL, nil)
	rec := ts.do(t, http.MethodPost, "/api/questions/q1/insight", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNoticeBoardIsBounded(t *testing.T) {
	b := NewNoticeBoard(2)
	for _, id := range []string{"a", "b", "c"} {
		b.Notify(model.Notice{ID: id})
	}
	list := b.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.False(t, b.Remove("a"))
	assert.True(t, b.Remove("c"))
}

func TestNoticeBoardReportsEvictions(t *testing.T) {
	b := NewNoticeBoard(1)
	var evicted []string
	b.OnEvict(func(id string) { evicted = append(evicted, id) })
	b.Notify(model.Notice{ID: "a"})
	b.Notify(model.Notice{ID: "b"})
	assert.Equal(t, []string{"a"}, evicted)
}
