// Package handler exposes a report session as a JSON API for the dashboard.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examreports/internal/llm"
	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/session"
	"github.com/pavelanni/examreports/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	session *session.Session
	store   *store.Store
	llm     *llm.Client
	notices *NoticeBoard
	busy    *BusyCounter
}

// New creates a Handler with its own report session. l may be nil, which
// disables wrong-answer insights.
func New(s *store.Store, l *llm.Client, b session.Backend, online func() bool, cfg model.ReportConfig) (*Handler, error) {
	if b == nil {
		return nil, errors.New("backend is required")
	}
	h := &Handler{
		store:   s,
		llm:     l,
		notices: NewNoticeBoard(50),
		busy:    &BusyCounter{},
	}
	opts := session.Options{
		Backend:     b,
		Notifier:    h.notices,
		Busy:        h.busy,
		Online:      online,
		PageSize:    cfg.PageSize,
		InstituteID: cfg.InstituteID,
	}
	if s != nil {
		opts.Preferences = s
		opts.Exports = s
	}
	h.session = session.New(opts)
	h.notices.OnEvict(h.session.Dismiss)
	return h, nil
}

// Session returns the report session served by h.
func (h *Handler) Session() *session.Session { return h.session }

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)

		r.Get("/institutes", h.handleInstitutes)
		r.Post("/institutes/reload", h.handleReloadInstitutes)
		r.Post("/institutes/{instituteID}/select", h.handleSelectInstitute)

		r.Get("/filters", h.handleFilters)
		r.Put("/filters", h.handleSetFilters)
		r.Post("/filters/reload", h.handleReloadFilters)

		r.Get("/exams", h.handleExams)
		r.Post("/exams/{scheduleID}/select", h.handleSelectExam)
		r.Post("/tab/{tab}", h.handleSetTab)

		r.Get("/report", h.handleReport)
		r.Post("/report/page/{page}", h.handleLoadPage)
		r.Post("/report/next", h.handleNextPage)
		r.Post("/report/prev", h.handlePrevPage)
		r.Post("/report/search", h.handleSearch)
		r.Get("/report.csv", h.handleExportCSV)
		r.Get("/exports", h.handleListExports)

		r.Get("/analytics", h.handleAnalytics)
		r.Post("/analytics/reload", h.handleReloadAnalytics)
		r.Get("/analytics/filter", h.handleCategoryFilter)
		r.Post("/analytics/filter/{categoryID}", h.handleRequestCategoryFilter)
		r.Delete("/analytics/filter", h.handleClearCategoryFilter)

		r.Post("/questions/{questionID}/wrong-answers", h.handleOpenWrongAnswers)
		r.Post("/questions/{questionID}/insight", h.handleInsight)
		r.Get("/wrong-answers", h.handleWrongAnswers)
		r.Delete("/wrong-answers", h.handleCloseWrongAnswers)
		r.Post("/wrong-answers/{index}/resources", h.handleOpenResources)
		r.Get("/resources", h.handleResources)
		r.Delete("/resources", h.handleCloseResources)

		r.Post("/users/{userID}/review", h.handleOpenReview)
		r.Get("/review", h.handleReview)
		r.Delete("/review", h.handleCloseReview)

		r.Get("/notices", h.handleNotices)
		r.Post("/notices/{noticeID}/retry", h.handleRetryNotice)
		r.Delete("/notices/{noticeID}", h.handleDismissNotice)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps session errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNoExamSelected):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, session.ErrUnknownAnswer),
		errors.Is(err, session.ErrUnknownNotice):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNoResourceKey),
		errors.Is(err, session.ErrNoUser),
		errors.Is(err, llm.ErrNoWrongAnswers):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	tab := "user"
	if h.session.Tab() == model.TabCategoryReport {
		tab = "category"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"busy": h.busy.Busy(),
		"exam": h.session.SelectedExam(),
		"tab":  tab,
	})
}

func (h *Handler) handleInstitutes(w http.ResponseWriter, r *http.Request) {
	list, active := h.session.Institutes()
	writeJSON(w, http.StatusOK, map[string]any{"institutes": list, "selected": active})
}

func (h *Handler) handleReloadInstitutes(w http.ResponseWriter, r *http.Request) {
	h.session.LoadInstitutes(r.Context())
	h.handleInstitutes(w, r)
}

func (h *Handler) handleSelectInstitute(w http.ResponseWriter, r *http.Request) {
	h.session.SelectInstitute(r.Context(), chi.URLParam(r, "instituteID"))
	h.handleInstitutes(w, r)
}

func (h *Handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	opts, active := h.session.FilterOptions()
	writeJSON(w, http.StatusOK, map[string]any{"options": opts, "active": active})
}

func (h *Handler) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	var f model.UserFilters
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, fmt.Sprintf("invalid filters: %v", err), http.StatusBadRequest)
		return
	}
	h.session.SetUserFilters(r.Context(), f)
	h.handleExams(w, r)
}

func (h *Handler) handleReloadFilters(w http.ResponseWriter, r *http.Request) {
	h.session.LoadFilterOptions(r.Context())
	h.handleFilters(w, r)
}

func (h *Handler) handleExams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"exams": h.session.Exams(r.URL.Query().Get("q"))})
}

func (h *Handler) handleSelectExam(w http.ResponseWriter, r *http.Request) {
	h.session.SelectExam(r.Context(), chi.URLParam(r, "scheduleID"))
	if h.session.Tab() == model.TabCategoryReport {
		h.handleAnalytics(w, r)
		return
	}
	h.handleReport(w, r)
}

func (h *Handler) handleSetTab(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "tab") {
	case "user":
		h.session.SetTab(r.Context(), model.TabUserReport)
		h.handleReport(w, r)
	case "category":
		h.session.SetTab(r.Context(), model.TabCategoryReport)
		h.handleAnalytics(w, r)
	default:
		http.Error(w, "unknown tab", http.StatusBadRequest)
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	rows, pager, totalPages, query := h.session.Report()
	writeJSON(w, http.StatusOK, map[string]any{
		"exam":        h.session.SelectedExam(),
		"rows":        rows,
		"pager":       pager,
		"total_pages": totalPages,
		"query":       query,
	})
}

func (h *Handler) handleLoadPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	if err := h.session.LoadUserReport(r.Context(), page); err != nil {
		writeError(w, err)
		return
	}
	h.handleReport(w, r)
}

func (h *Handler) handleNextPage(w http.ResponseWriter, r *http.Request) {
	if err := h.session.NextPage(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.handleReport(w, r)
}

func (h *Handler) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	if err := h.session.PrevPage(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.handleReport(w, r)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"q"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid search: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.session.Search(r.Context(), body.Query); err != nil {
		writeError(w, err)
		return
	}
	h.handleReport(w, r)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	out, err := h.session.ExportCSV(r.Context())
	if errors.Is(err, session.ErrNoRows) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	if _, err := w.Write(out.Data); err != nil {
		slog.Error("write csv", "error", err)
	}
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"exports": []model.ExportRecord{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.store.ListExports(r.URL.Query().Get("schedule_id"), limit)
	if err != nil {
		writeError(w, fmt.Errorf("list exports: %w", err))
		return
	}
	if list == nil {
		list = []model.ExportRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": list})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, loaded := h.session.Analytics()
	writeJSON(w, http.StatusOK, map[string]any{
		"exam":       h.session.SelectedExam(),
		"loaded":     loaded,
		"categories": a.Categories,
		"questions":  a.Questions,
	})
}

func (h *Handler) handleReloadAnalytics(w http.ResponseWriter, r *http.Request) {
	if err := h.session.LoadAnalytics(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.handleAnalytics(w, r)
}

func (h *Handler) handleCategoryFilter(w http.ResponseWriter, r *http.Request) {
	state, pending, applied, filtered := h.session.CategoryFilter()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     state.String(),
		"pending":   pending,
		"applied":   applied,
		"questions": filtered,
	})
}

func (h *Handler) handleRequestCategoryFilter(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RequestCategoryFilter(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		writeError(w, err)
		return
	}
	h.handleCategoryFilter(w, r)
}

func (h *Handler) handleClearCategoryFilter(w http.ResponseWriter, r *http.Request) {
	h.session.ClearCategoryFilter()
	h.handleCategoryFilter(w, r)
}

func (h *Handler) handleOpenWrongAnswers(w http.ResponseWriter, r *http.Request) {
	if err := h.session.OpenWrongAnswerSummary(r.Context(), chi.URLParam(r, "questionID")); err != nil {
		writeError(w, err)
		return
	}
	h.handleWrongAnswers(w, r)
}

func (h *Handler) handleWrongAnswers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"panel": h.session.WrongAnswers()})
}

func (h *Handler) handleCloseWrongAnswers(w http.ResponseWriter, r *http.Request) {
	h.session.CloseWrongAnswers()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpenResources(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if err := h.session.OpenResources(r.Context(), index); err != nil {
		writeError(w, err)
		return
	}
	h.handleResources(w, r)
}

func (h *Handler) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"panel": h.session.Resources()})
}

func (h *Handler) handleCloseResources(w http.ResponseWriter, r *http.Request) {
	h.session.CloseResources()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpenReview(w http.ResponseWriter, r *http.Request) {
	if err := h.session.OpenUserReview(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, err)
		return
	}
	h.handleReview(w, r)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"panel": h.session.Review()})
}

func (h *Handler) handleCloseReview(w http.ResponseWriter, r *http.Request) {
	h.session.CloseReview()
	w.WriteHeader(http.StatusNoContent)
}
