// Package prompts renders the LLM prompts used to explain wrong-answer
// distributions.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examreports/internal/model"
)

//go:embed templates/*.txt
var Templates embed.FS

var tagRegex = regexp.MustCompile(`(?i)</?\s*(question|wrong-answer)\b[^>]*>`)

// Variant selects how much detail an insight asks for.
type Variant string

const (
	VariantBrief    Variant = "brief"
	VariantDetailed Variant = "detailed"
)

var validVariants = map[Variant]bool{
	VariantBrief:    true,
	VariantDetailed: true,
}

const (
	maxTextRunes    = 2000
	maxWrongAnswers = 20
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// InsightData holds template data for insight prompts.
type InsightData struct {
	QuestionText string
	Attempts     int
	WrongAnswers []WrongAnswer
}

// WrongAnswer is one line of the wrong-answer list in a prompt.
type WrongAnswer struct {
	Answer string
	Count  int
	Pct    string
}

// Load parses the insight templates from fsys (see Templates).
// Only the first call has effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for v := range validVariants {
			file := "templates/insight_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildInsightPrompt renders the prompt explaining the wrong answers of a
// question. Answers are ordered by count, most chosen first.
func BuildInsightPrompt(variant Variant, question model.QuestionSummary, records []model.WrongAnswerRecord) (string, error) {
	if templates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := InsightData{
		QuestionText: sanitize(question.Text, "[No question text]"),
		Attempts:     question.Attempts,
		WrongAnswers: wrongAnswers(records),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func wrongAnswers(records []model.WrongAnswerRecord) []WrongAnswer {
	out := make([]WrongAnswer, 0, len(records))
	for _, r := range records {
		w := WrongAnswer{Answer: sanitize(r.Answer, "[empty]"), Pct: r.Pct}
		if r.Count != nil {
			w.Count = *r.Count
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > maxWrongAnswers {
		out = out[:maxWrongAnswers]
	}
	return out
}

func sanitize(s, empty string) string {
	s = tagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return empty
	}
	if utf8.RuneCountInString(s) > maxTextRunes {
		runes := []rune(s)
		s = string(runes[:maxTextRunes]) + " [truncated]"
	}
	return s
}
