package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examreports/internal/llm"
	"github.com/pavelanni/examreports/internal/session"
)

// handleInsight explains the wrong answers of a question with the LLM.
// Insights are cached per exam and question.
func (h *Handler) handleInsight(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		http.Error(w, "insights are not configured", http.StatusServiceUnavailable)
		return
	}
	exam := h.session.SelectedExam()
	if exam == nil {
		writeError(w, session.ErrNoExamSelected)
		return
	}
	questionID := chi.URLParam(r, "questionID")

	if h.store != nil {
		cached, err := h.store.GetInsight(exam.ScheduleID, questionID)
		if err != nil {
			slog.Warn("read cached insight", "error", err)
		}
		if cached != "" {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Insight-Cache", "hit")
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	panel := h.session.WrongAnswers()
	if panel == nil || panel.Question.ID != questionID || panel.Loading {
		if err := h.session.OpenWrongAnswerSummary(r.Context(), questionID); err != nil {
			writeError(w, err)
			return
		}
		panel = h.session.WrongAnswers()
	}
	if panel == nil {
		writeError(w, session.ErrUnknownQuestion)
		return
	}

	insight, err := h.llm.ExplainWrongAnswers(r.Context(), panel.Question, panel.Records)
	if err != nil {
		if !errors.Is(err, llm.ErrNoWrongAnswers) {
			err = fmt.Errorf("explain wrong answers: %w", err)
		}
		writeError(w, err)
		return
	}
	if h.store != nil {
		if data, err := json.Marshal(insight); err == nil {
			if err := h.store.SaveInsight(exam.ScheduleID, questionID, string(data)); err != nil {
				slog.Warn("cache insight", "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, insight)
}
