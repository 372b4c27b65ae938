// Package backend is a thin HTTP client for the exam backend. It returns raw
// response bodies; interpreting them is the job of package normalize.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/pavelanni/examreports/internal/metrics"
	"github.com/pavelanni/examreports/internal/model"
)

// Backend endpoints.
const (
	EndpointInstitutes        = "/institutes/list"
	EndpointExamSchedules     = "/get-exam-schedule-details"
	EndpointUserReport        = "/get-exam-user-report"
	EndpointAnalytics         = "/get-exam-analytics"
	EndpointQuestionWrong     = "/get-question-wrong-answers"
	EndpointAnswerResources   = "/get-answer-resources"
	EndpointReviewUserExam    = "/review-user-exam"
	EndpointDepartments       = "/get-department-list"
	EndpointTeams             = "/get-teams-list"
	EndpointCampuses          = "/get-campus-list"
	EndpointLocationHierarchy = "/location-hierarchy"
)

const maxBodySize = 32 << 20

// Client issues GET requests against the backend base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	dialTO  time.Duration

	// Reachability seen by the last probe or request, reused for onlineTTL.
	mu        sync.Mutex
	onlineTTL time.Duration
	onlineOK  bool
	onlineAt  time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithOnlineTTL sets how long a reachability result is reused by Online.
// Zero probes on every call.
func WithOnlineTTL(d time.Duration) Option {
	return func(c *Client) { c.onlineTTL = d }
}

// WithRateLimit paces outgoing requests to rps with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL %q must include scheme and host", baseURL)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 30 * time.Second},
		dialTO:    2 * time.Second,
		onlineTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get performs GET base+endpoint?params and returns the body of a 2xx
// response. Failures are *TransportError.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Endpoint: endpoint, Err: err}
		}
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + endpoint
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRequest(endpoint, 0, time.Since(start))
		if ctx.Err() == nil {
			c.setOnline(false)
		}
		slog.Warn("backend request failed", "endpoint", endpoint, "error", err)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	c.setOnline(true)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  errorMessage(body),
		}
		slog.Warn("backend returned error status", "endpoint", endpoint, "status", resp.StatusCode, "message", te.Message)
		return nil, te
	}
	slog.Debug("backend response", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	r := gjson.ParseBytes(body)
	for _, k := range []string{"statusMessage", "message", "error"} {
		if v := r.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// Online reports whether the backend host accepts TCP connections. A result
// seen within the online TTL, by a probe or a request, is reused.
func (c *Client) Online() bool {
	c.mu.Lock()
	if c.onlineTTL > 0 && !c.onlineAt.IsZero() && time.Since(c.onlineAt) < c.onlineTTL {
		ok := c.onlineOK
		c.mu.Unlock()
		return ok
	}
	c.mu.Unlock()

	ok := c.dial()
	c.setOnline(ok)
	return ok
}

func (c *Client) setOnline(ok bool) {
	c.mu.Lock()
	c.onlineOK = ok
	c.onlineAt = time.Now()
	c.mu.Unlock()
}

func (c *Client) dial() bool {
	host := c.base.Host
	if c.base.Port() == "" {
		if c.base.Scheme == "https" {
			host = net.JoinHostPort(c.base.Hostname(), "443")
		} else {
			host = net.JoinHostPort(c.base.Hostname(), "80")
		}
	}
	conn, err := net.DialTimeout("tcp", host, c.dialTO)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Institutes fetches the institute list.
func (c *Client) Institutes(ctx context.Context) ([]byte, error) {
	return c.Get(ctx, EndpointInstitutes, nil)
}

// ExamSchedules fetches the exam schedules of an institute.
func (c *Client) ExamSchedules(ctx context.Context, instituteID string, f model.UserFilters) ([]byte, error) {
	return c.Get(ctx, EndpointExamSchedules, url.Values{
		"institute_id": {instituteID},
		"country_id":   {f.CountryID},
		"city_id":      {f.CityID},
		"campus_id":    {f.CampusID},
	})
}

// UserReport fetches one page of the per-student report.
func (c *Client) UserReport(ctx context.Context, scheduleID string, page, pageSize int, query string) ([]byte, error) {
	params := url.Values{
		"schedule_id": {scheduleID},
		"page":        {strconv.Itoa(page)},
		"page_size":   {strconv.Itoa(pageSize)},
	}
	if query != "" {
		params.Set("q", query)
	}
	return c.Get(ctx, EndpointUserReport, params)
}

// Analytics fetches the category report, question summary and wrong-answer
// distribution of an exam.
func (c *Client) Analytics(ctx context.Context, scheduleID string) ([]byte, error) {
	return c.Get(ctx, EndpointAnalytics, url.Values{"schedule_id": {scheduleID}})
}

// QuestionWrongAnswers fetches the wrong-answer distribution of one question.
func (c *Client) QuestionWrongAnswers(ctx context.Context, scheduleID, questionID string) ([]byte, error) {
	return c.Get(ctx, EndpointQuestionWrong, url.Values{
		"schedule_id": {scheduleID},
		"question_id": {questionID},
	})
}

// AnswerResources fetches resources for one wrong answer. params carries
// schedule_id, question_id and one of option_id, answer_id, answer_value.
func (c *Client) AnswerResources(ctx context.Context, params url.Values) ([]byte, error) {
	return c.Get(ctx, EndpointAnswerResources, params)
}

// ReviewUserExam fetches a student's review attempts for an exam.
func (c *Client) ReviewUserExam(ctx context.Context, userID, scheduleID string) ([]byte, error) {
	return c.Get(ctx, EndpointReviewUserExam, url.Values{
		"user_id":      {userID},
		"scheduler_id": {scheduleID},
	})
}

// FilterList fetches one of the filter option lists (departments, teams,
// campuses, location hierarchy) for an institute.
func (c *Client) FilterList(ctx context.Context, endpoint, instituteID string) ([]byte, error) {
	var params url.Values
	if instituteID != "" {
		params = url.Values{"institute_id": {instituteID}}
	}
	return c.Get(ctx, endpoint, params)
}
