package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/examreports/internal/model"
)

func intPtr(n int) *int { return &n }

func TestParseInsight(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"summary":"sign error","misconceptions":["a"],"suggestions":["b"]}`, "sign error", false},
		{"fenced", "```json\n{\"summary\":\"fenced\"}\n```", "fenced", false},
		{"garbage", "not json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInsight(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInsight: %v", err)
			}
			if got.Summary != tt.want {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.want)
			}
			if got.Misconceptions == nil || got.Suggestions == nil {
				t.Error("lists should never be nil")
			}
		})
	}
}

func TestExplainWrongAnswersNoRecords(t *testing.T) {
	c, err := New("http://127.0.0.1:1/v1", "k", "m", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ExplainWrongAnswers(context.Background(), model.QuestionSummary{ID: "q1"}, nil)
	if !errors.Is(err, ErrNoWrongAnswers) {
		t.Errorf("err = %v, want ErrNoWrongAnswers", err)
	}
}

func TestExplainWrongAnswers(t *testing.T) {
	var gotPrompt, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"Students add instead of multiply.\",\"misconceptions\":[\"operator confusion\"],\"suggestions\":[\"drill\"]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/v1", "test-key", "test-model", "detailed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	q := model.QuestionSummary{ID: "q1", Text: "What is 2*3?", Attempts: 20}
	recs := []model.WrongAnswerRecord{
		{Answer: "5", Count: intPtr(8), Pct: "40%"},
		{Answer: "8", Count: intPtr(2)},
	}
	got, err := c.ExplainWrongAnswers(context.Background(), q, recs)
	if err != nil {
		t.Fatalf("ExplainWrongAnswers: %v", err)
	}
	if got.Summary != "Students add instead of multiply." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if len(got.Misconceptions) != 1 || got.Misconceptions[0] != "operator confusion" {
		t.Errorf("Misconceptions = %v", got.Misconceptions)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q, want test-model", gotModel)
	}
	if !strings.Contains(gotPrompt, "What is 2*3?") {
		t.Error("prompt should contain question text")
	}
	if !strings.Contains(gotPrompt, "<wrong-answer>5</wrong-answer> chosen 8 times (40%)") {
		t.Errorf("prompt should list wrong answers, got:\n%s", gotPrompt)
	}
}
